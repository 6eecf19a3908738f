// Package repository define los contratos de persistencia del núcleo de
// autenticación. Los adapters (memory, postgres) viven en internal/store.
//
// Convenciones:
//   - Lecturas de algo inexistente devuelven ErrNotFound.
//   - Violaciones de unicidad devuelven ErrConflict.
//   - Los servicios traducen estos sentinels a errores HTTP tipados.
package repository
