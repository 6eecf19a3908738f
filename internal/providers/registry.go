package providers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
)

// Factory crea una instancia de proveedor a partir de credenciales descifradas.
type Factory func(cfg ProviderConfig) (Provider, error)

// Registry mantiene las factories y cachea instancias por proyecto.
// La clave de cache incluye un fingerprint de las credenciales: si el
// proyecto re-registra el proveedor se crea una instancia nueva.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	cache     map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		cache:     make(map[string]Provider),
	}
}

// Register asocia un nombre de proveedor a su factory. Se llama al arrancar.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Supports indica si hay factory para name.
func (r *Registry) Supports(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names devuelve los proveedores registrados, ordenados.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get devuelve la instancia del proveedor para el proyecto.
func (r *Registry) Get(projectID, name string, cfg ProviderConfig) (Provider, error) {
	key := cacheKey(projectID, name, cfg)

	r.mu.RLock()
	if p, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.cache[key]; ok {
		return p, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("provider not registered: %s", name)
	}
	p, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("create provider %s: %w", name, err)
	}
	r.cache[key] = p
	return p, nil
}

// Invalidate descarta las instancias cacheadas del proyecto.
func (r *Registry) Invalidate(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := projectID + ":"
	for k := range r.cache {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(r.cache, k)
		}
	}
}

func cacheKey(projectID, name string, cfg ProviderConfig) string {
	h := sha256.Sum256([]byte(cfg.ClientID + "\x00" + cfg.ClientSecret + "\x00" + cfg.RedirectURI))
	return projectID + ":" + name + ":" + hex.EncodeToString(h[:8])
}
