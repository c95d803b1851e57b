package quickjs

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/tonkit/wkbridge/storage"
)

// hostModule is the import namespace the guest bundle links against.
const hostModule = "walletkit"

// wazeroGuest drives the QuickJS-ng module through its exported ABI. All
// methods run on the transport's worker goroutine; nothing here is safe for
// concurrent entry.
type wazeroGuest struct {
	runtime wazero.Runtime
	mod     api.Module
	store   storage.Store
	logger  *zap.Logger
	emit    func(text string)

	fnStart   api.Function
	fnReceive api.Function
	fnPump    api.Function
	fnAlloc   api.Function
	fnFree    api.Function
}

func newWazeroGuest(ctx context.Context, module []byte, store storage.Store, logger *zap.Logger, emit func(string)) (*wazeroGuest, error) {
	if len(module) == 0 {
		return nil, fmt.Errorf("quickjs: empty guest module")
	}

	g := &wazeroGuest{
		store:  store,
		logger: logger,
		emit:   emit,
	}

	g.runtime = wazero.NewRuntimeWithConfig(ctx,
		wazero.NewRuntimeConfig().WithDebugInfoEnabled(false))

	wasi_snapshot_preview1.MustInstantiate(ctx, g.runtime)

	_, err := g.runtime.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().WithFunc(g.hostEmit).Export("emit").
		NewFunctionBuilder().WithFunc(g.hostStorageGet).Export("storage_get").
		NewFunctionBuilder().WithFunc(g.hostStorageSet).Export("storage_set").
		NewFunctionBuilder().WithFunc(g.hostStorageRemove).Export("storage_remove").
		NewFunctionBuilder().WithFunc(g.hostLog).Export("log").
		Instantiate(ctx)
	if err != nil {
		_ = g.runtime.Close(ctx)
		return nil, fmt.Errorf("quickjs: instantiate host module: %w", err)
	}

	compiled, err := g.runtime.CompileModule(ctx, module)
	if err != nil {
		_ = g.runtime.Close(ctx)
		return nil, fmt.Errorf("quickjs: compile guest: %w", err)
	}

	g.mod, err = g.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		_ = g.runtime.Close(ctx)
		return nil, fmt.Errorf("quickjs: instantiate guest: %w", err)
	}
	if g.mod.Memory() == nil {
		_ = g.runtime.Close(ctx)
		return nil, fmt.Errorf("quickjs: guest exports no memory")
	}

	for _, want := range []struct {
		name string
		fn   *api.Function
	}{
		{"wk_start", &g.fnStart},
		{"wk_receive", &g.fnReceive},
		{"wk_pump", &g.fnPump},
		{"wk_alloc", &g.fnAlloc},
		{"wk_free", &g.fnFree},
	} {
		f := g.mod.ExportedFunction(want.name)
		if f == nil {
			_ = g.runtime.Close(ctx)
			return nil, fmt.Errorf("quickjs: guest does not export %s", want.name)
		}
		*want.fn = f
	}

	return g, nil
}

// Start evaluates the wallet bundle inside the interpreter.
func (g *wazeroGuest) Start(ctx context.Context) error {
	if _, err := g.fnStart.Call(ctx); err != nil {
		return fmt.Errorf("quickjs: wk_start: %w", err)
	}
	return nil
}

// Receive copies one envelope text into guest memory and hands it to the
// script side. The guest buffer is released after the call returns.
func (g *wazeroGuest) Receive(ctx context.Context, text string) error {
	ptr, err := g.writeString(ctx, text)
	if err != nil {
		return err
	}
	_, err = g.fnReceive.Call(ctx, uint64(ptr), uint64(len(text)))
	if ferr := g.free(ctx, ptr, uint32(len(text))); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return fmt.Errorf("quickjs: wk_receive: %w", err)
	}
	return nil
}

// Pump runs one pending interpreter job. Positive means more jobs remain.
func (g *wazeroGuest) Pump(ctx context.Context) (int, error) {
	results, err := g.fnPump.Call(ctx)
	if err != nil {
		return 0, fmt.Errorf("quickjs: wk_pump: %w", err)
	}
	return int(int32(results[0])), nil
}

// Close disposes the interpreter and the runtime behind it.
func (g *wazeroGuest) Close(ctx context.Context) error {
	return g.runtime.Close(ctx)
}

func (g *wazeroGuest) writeString(ctx context.Context, s string) (uint32, error) {
	results, err := g.fnAlloc.Call(ctx, uint64(len(s)))
	if err != nil {
		return 0, fmt.Errorf("quickjs: wk_alloc: %w", err)
	}
	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, fmt.Errorf("quickjs: guest allocation of %d bytes failed", len(s))
	}
	if !g.mod.Memory().Write(ptr, []byte(s)) {
		return 0, fmt.Errorf("quickjs: write to guest memory at %d failed", ptr)
	}
	return ptr, nil
}

func (g *wazeroGuest) free(ctx context.Context, ptr, size uint32) error {
	if _, err := g.fnFree.Call(ctx, uint64(ptr), uint64(size)); err != nil {
		return fmt.Errorf("quickjs: wk_free: %w", err)
	}
	return nil
}

// Host imports. Each one copies out of guest memory before returning; the
// interpreter may reclaim the buffer as soon as the call is done.

func (g *wazeroGuest) hostEmit(_ context.Context, m api.Module, ptr, size uint32) {
	text, ok := readGuestString(m, ptr, size)
	if !ok {
		g.logger.Error("guest emit points outside memory",
			zap.Uint32("ptr", ptr), zap.Uint32("len", size))
		return
	}
	g.emit(text)
}

// hostStorageGet returns the value packed as ptr<<32|len in a wk_alloc'd
// buffer the guest owns, or 0 when the key is missing.
func (g *wazeroGuest) hostStorageGet(ctx context.Context, m api.Module, keyPtr, keyLen uint32) uint64 {
	key, ok := readGuestString(m, keyPtr, keyLen)
	if !ok {
		return 0
	}
	value, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.Error("storage get failed", zap.String("key", key), zap.Error(err))
		return 0
	}
	if value == "" {
		return 0
	}
	ptr, err := g.writeString(ctx, value)
	if err != nil {
		g.logger.Error("storage get result did not fit in guest memory",
			zap.String("key", key), zap.Error(err))
		return 0
	}
	return uint64(ptr)<<32 | uint64(uint32(len(value)))
}

func (g *wazeroGuest) hostStorageSet(ctx context.Context, m api.Module, keyPtr, keyLen, valPtr, valLen uint32) {
	key, ok := readGuestString(m, keyPtr, keyLen)
	if !ok {
		return
	}
	value, ok := readGuestString(m, valPtr, valLen)
	if !ok {
		return
	}
	if err := g.store.Set(ctx, key, value); err != nil {
		g.logger.Error("storage set failed", zap.String("key", key), zap.Error(err))
	}
}

func (g *wazeroGuest) hostStorageRemove(ctx context.Context, m api.Module, keyPtr, keyLen uint32) {
	key, ok := readGuestString(m, keyPtr, keyLen)
	if !ok {
		return
	}
	if err := g.store.Remove(ctx, key); err != nil {
		g.logger.Error("storage remove failed", zap.String("key", key), zap.Error(err))
	}
}

func (g *wazeroGuest) hostLog(_ context.Context, m api.Module, level, ptr, size uint32) {
	msg, ok := readGuestString(m, ptr, size)
	if !ok {
		return
	}
	switch level {
	case 0:
		g.logger.Debug(msg, zap.String("source", "guest"))
	case 1:
		g.logger.Info(msg, zap.String("source", "guest"))
	case 2:
		g.logger.Warn(msg, zap.String("source", "guest"))
	default:
		g.logger.Error(msg, zap.String("source", "guest"))
	}
}

func readGuestString(m api.Module, ptr, size uint32) (string, bool) {
	buf, ok := m.Memory().Read(ptr, size)
	if !ok {
		return "", false
	}
	return string(buf), true
}
