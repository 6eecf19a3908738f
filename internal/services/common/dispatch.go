// Package common reúne piezas compartidas por los servicios del núcleo:
// mapeo de errores de repositorio, emisión de sesiones y despacho de
// efectos secundarios asíncronos.
package common

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
)

// Dispatcher corre efectos secundarios fuera del request (último login,
// limpieza). Los errores se convierten con MapRepo y se loguean; un panic
// se recupera. Nunca llegan al caller.
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{timeout: timeout}
}

// Go lanza fn con un contexto desligado de la cancelación del request
// pero con los valores (logger, request id) del original.
func (d *Dispatcher) Go(ctx context.Context, op string, fn func(ctx context.Context) error) {
	if d == nil {
		return
	}
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("dispatch"), logger.Op(op))
	base := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("side effect panicked", zap.Any("panic", r))
			}
		}()

		cctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		if err := fn(cctx); err != nil {
			mapped := MapRepo(err, nil)
			log.Warn("side effect failed", logger.Err(mapped))
		}
	}()
}

// Wait bloquea hasta que terminen los efectos en curso. Se usa en el
// shutdown y en tests.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
