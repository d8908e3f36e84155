package platform_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/harish-agr/network-lib/internal/eventbus"
	"github.com/harish-agr/network-lib/internal/platform"
	"github.com/harish-agr/network-lib/internal/platform/mockplatform"
)

func TestBusFoundationPostProcess(t *testing.T) {
	f := platform.NewBusFoundation(platform.NopLogger())
	h := f.Allocate(0)
	defer f.Deallocate(h)

	f.Post(h, eventbus.Connect, 42)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := f.Process(ctx, h)
	if !ok || ev.ID != eventbus.Connect || ev.Object != 42 {
		t.Fatalf("unexpected event %+v ok=%v", ev, ok)
	}
}

func TestBusFoundationLogsOnOverflow(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mockplatform.NewMockLogger(ctrl)
	mockLogger.EXPECT().Log(platform.Warn, "eventbus", gomock.Any()).MinTimes(1)

	f := platform.NewBusFoundation(mockLogger)
	h := f.Allocate(recordBytesForOneEvent())
	defer f.Deallocate(h)

	f.Post(h, eventbus.Connect, 1)
	f.Post(h, eventbus.Accept, 2) // should overflow the one-record bus and log a warning
}

// recordBytesForOneEvent returns an EventStreamSize that fits exactly one
// event record under eventbus's fixed per-record size.
func recordBytesForOneEvent() int { return 32 }
