package app

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/categorylink/internal/config"
	statushttp "github.com/yungbote/categorylink/internal/http"
	"github.com/yungbote/categorylink/internal/platform/logger"
)

func TestStatusServerBindFailureLeavesJobRunning(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Status.Addr = ln.Addr().String()
	a := &App{Log: logger.NewNop(), Cfg: cfg, Server: &statushttp.Server{Engine: gin.New()}}

	var jobErr error
	err = a.withStatusServer(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			jobErr = ctx.Err()
		case <-time.After(300 * time.Millisecond):
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withStatusServer: %v", err)
	}
	if jobErr != nil {
		t.Fatalf("job context: want=<nil> got=%v", jobErr)
	}
}

func TestStatusServerStopsWithJob(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Status.Addr = "127.0.0.1:0"
	a := &App{Log: logger.NewNop(), Cfg: cfg, Server: &statushttp.Server{Engine: gin.New()}}

	done := make(chan error, 1)
	go func() {
		done <- a.withStatusServer(context.Background(), func(context.Context) error { return nil })
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("withStatusServer: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("status server outlived the job")
	}
}
