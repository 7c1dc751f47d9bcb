package audio

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DeviceIndex != -1 {
		t.Errorf("DefaultConfig().DeviceIndex = %d, want -1", cfg.DeviceIndex)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("DefaultConfig().SampleRate = %d, want 16000", cfg.SampleRate)
	}
	if cfg.Channels != 1 {
		t.Errorf("DefaultConfig().Channels = %d, want 1", cfg.Channels)
	}
	if cfg.BufferSize != 480 {
		t.Errorf("DefaultConfig().BufferSize = %d, want 480", cfg.BufferSize)
	}
}

func TestNew(t *testing.T) {
	cfg := Config{
		DeviceIndex: 2,
		SampleRate:  16000,
		Channels:    1,
		BufferSize:  1024,
	}

	capture := New(cfg)

	if capture == nil {
		t.Fatal("New() returned nil")
	}
	if capture.config.DeviceIndex != 2 {
		t.Errorf("capture.config.DeviceIndex = %d, want 2", capture.config.DeviceIndex)
	}
	if capture.config.BufferSize != 1024 {
		t.Errorf("capture.config.BufferSize = %d, want 1024", capture.config.BufferSize)
	}
	if cap(capture.Samples) != 64 {
		t.Errorf("capture.Samples capacity = %d, want 64", cap(capture.Samples))
	}
}

func TestCapture_IsRunning_InitialState(t *testing.T) {
	capture := New(DefaultConfig())

	if capture.IsRunning() {
		t.Error("IsRunning() = true for new capture, want false")
	}
	if capture.closed.Load() {
		t.Error("closed flag should be false initially")
	}
}

func TestCapture_SetCallback(t *testing.T) {
	capture := New(DefaultConfig())

	var got []byte
	capture.SetCallback(func(pcm []byte) { got = pcm })

	cb := capture.callbackPtr.Load()
	if cb == nil {
		t.Fatal("SetCallback() did not set callback")
	}
	(*cb)([]byte{1, 2})
	if len(got) != 2 {
		t.Errorf("callback received %d bytes, want 2", len(got))
	}

	capture.SetCallback(nil)
	if capture.callbackPtr.Load() != nil {
		t.Error("SetCallback(nil) should clear callback")
	}
}

func TestCapture_ListDevices_NotInitialized(t *testing.T) {
	capture := New(DefaultConfig())

	_, err := capture.ListDevices()
	if err != ErrNotInitialized {
		t.Errorf("ListDevices() error = %v, want ErrNotInitialized", err)
	}
}

func TestCapture_Start_NotInitialized(t *testing.T) {
	capture := New(DefaultConfig())

	err := capture.Start(context.Background())
	if err != ErrNotInitialized {
		t.Errorf("Start() error = %v, want ErrNotInitialized", err)
	}
}

func TestCapture_Start_AlreadyRunning(t *testing.T) {
	capture := New(DefaultConfig())

	capture.running.Store(true)

	err := capture.Start(context.Background())
	if err != ErrAlreadyRunning {
		t.Errorf("Start() when running error = %v, want ErrAlreadyRunning", err)
	}
}

func TestCapture_Start_ConcurrentWhileRunning(t *testing.T) {
	capture := New(DefaultConfig())
	capture.running.Store(true)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- capture.Start(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != ErrAlreadyRunning {
			t.Errorf("Start() error = %v, want ErrAlreadyRunning", err)
		}
	}
	if capture.device != nil {
		t.Error("Start() must not create a device while already running")
	}
}

func TestCapture_Stop_NotRunning(t *testing.T) {
	capture := New(DefaultConfig())

	err := capture.Stop()
	if err != ErrNotRunning {
		t.Errorf("Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestCapture_Close_WithoutInit(t *testing.T) {
	capture := New(DefaultConfig())

	if err := capture.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !capture.closed.Load() {
		t.Error("closed flag should be true after Close()")
	}
	if _, ok := <-capture.Samples; ok {
		t.Error("Samples should be closed after Close()")
	}

	// Second close must not panic on the channel
	if err := capture.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if err := capture.Init(); err != ErrClosed {
		t.Errorf("Init() after Close error = %v, want ErrClosed", err)
	}
}

func TestCapture_Close_Concurrent(t *testing.T) {
	capture := New(DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = capture.Close()
		}()
	}
	wg.Wait()

	if !capture.closed.Load() {
		t.Error("capture should be closed")
	}
}

func TestCapture_SafeSend_NormalOperation(t *testing.T) {
	capture := New(DefaultConfig())

	capture.safeSend([]byte{1, 2, 3, 4})

	select {
	case pcm := <-capture.Samples:
		if len(pcm) != 4 {
			t.Errorf("expected 4 bytes, got %d", len(pcm))
		}
	default:
		t.Error("expected buffer to be sent to channel")
	}
}

func TestCapture_SafeSend_ChannelFull(t *testing.T) {
	capture := &Capture{
		config:  DefaultConfig(),
		Samples: make(chan []byte, 1),
	}

	capture.safeSend([]byte{1})
	capture.safeSend([]byte{2})

	select {
	case pcm := <-capture.Samples:
		if pcm[0] != 1 {
			t.Errorf("expected first buffer, got %v", pcm)
		}
	default:
		t.Error("expected buffer in channel")
	}

	select {
	case <-capture.Samples:
		t.Error("channel should be empty after draining")
	default:
	}
}

func TestCapture_SafeSend_RecoverFromClosedChannel(t *testing.T) {
	capture := New(DefaultConfig())
	close(capture.Samples)

	// Must not panic
	capture.safeSend([]byte{1, 2})
}

func TestCapture_ConcurrentSetCallbackAndRead(t *testing.T) {
	capture := New(DefaultConfig())

	var wg sync.WaitGroup
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				capture.SetCallback(func([]byte) {})
			}
		}()
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				_ = capture.callbackPtr.Load()
				_ = capture.IsRunning()
			}
		}()
	}

	wg.Wait()
}

func TestCopyBytes(t *testing.T) {
	src := []byte{1, 2, 3}
	dst := copyBytes(src)

	src[0] = 9
	if dst[0] != 1 {
		t.Error("copyBytes() should not alias its input")
	}
	if copyBytes(nil) != nil {
		t.Error("copyBytes(nil) should return nil")
	}
	if got := copyBytes([]byte{}); got == nil || len(got) != 0 {
		t.Errorf("copyBytes(empty) = %v, want empty non-nil", got)
	}
}

func TestErrors(t *testing.T) {
	if ErrNotInitialized.Error() != "audio capture not initialized" {
		t.Errorf("ErrNotInitialized message wrong")
	}
	if ErrAlreadyRunning.Error() != "audio capture already running" {
		t.Errorf("ErrAlreadyRunning message wrong")
	}
	if ErrNotRunning.Error() != "audio capture not running" {
		t.Errorf("ErrNotRunning message wrong")
	}
}
