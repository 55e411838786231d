package checks

import (
	"context"
	"fmt"

	"github.com/nexus-skeleton/libcheck/registry"
	"github.com/nexus-skeleton/libcheck/runner"
	"github.com/nexus-skeleton/libcheck/share"
	"github.com/nexus-skeleton/libcheck/types"
)

// Observer drives a scratch registry and checks that a subscriber sees each change
func Observer(context.Context) (string, error) {
	reg := registry.NewRegistry(registry.Config{})
	var notifications int
	var last []types.TestRecord
	unsubscribe := reg.Subscribe(func(results []types.TestRecord) {
		notifications++
		last = results
	})

	reg.RegisterTest("counter", "Counter", "State Management")
	reg.StartTest("counter")
	reg.PassTest("counter", "Counter working: 1")
	unsubscribe()
	reg.Reset()

	if notifications != 3 {
		return "", fmt.Errorf("expected 3 notifications, got %d", notifications)
	}
	if len(last) != 1 || last[0].Status != types.TestStatusPassed {
		return "", fmt.Errorf("last snapshot does not show the passed test: %+v", last)
	}
	return fmt.Sprintf("Subscriber received %d notifications", notifications), nil
}

// Sharing reports whether the share target can accept files. It is skipped when the target is unavailable.
func Sharing(target share.Target) runner.CheckFunc {
	return func(ctx context.Context) (string, error) {
		if !target.Available(ctx) {
			return "", runner.Skip(fmt.Sprintf("share target %q is not available", target.Name()))
		}
		return fmt.Sprintf("Share target %q is available", target.Name()), nil
	}
}
