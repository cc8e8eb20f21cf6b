package cursor

import (
	"context"
	"fmt"
)

// SelfTestValue is the probe written by SelfTest
const SelfTestValue uint64 = 1234567890

// SelfTestResult reports a write, read-back and restore probe of a Store
type SelfTestResult struct {
	Written  uint64
	Read     uint64
	Success  bool
	Restored bool
	Err      error
}

// SelfTest overwrites the cursor with SelfTestValue, reads it back and then puts
// the previous value back, or clears it when none was set. Nothing is restored
// when the probe write fails. When the current value cannot be read nothing is
// written, since it could not be put back.
func SelfTest(ctx context.Context, s Store) SelfTestResult {
	previous := s.Status(ctx)
	if previous.ReadErr != nil {
		return SelfTestResult{Err: fmt.Errorf("failed to read current cursor, nothing written: %w", previous.ReadErr)}
	}
	res := SelfTestResult{Written: SelfTestValue}

	if _, err := s.Overwrite(ctx, SelfTestValue); err != nil {
		res.Err = fmt.Errorf("cursor store test failed: %w", err)
		return res
	}

	res.Read = s.Get(ctx)
	res.Success = res.Read == SelfTestValue
	if !res.Success {
		res.Err = fmt.Errorf("write/read mismatch: wrote %d, read %d", SelfTestValue, res.Read)
	}

	var restoreErr error
	if previous.HasValue {
		_, restoreErr = s.Overwrite(ctx, previous.Value)
	} else {
		restoreErr = s.Reset(ctx)
	}
	res.Restored = restoreErr == nil
	if restoreErr != nil && res.Err == nil {
		res.Err = fmt.Errorf("failed to restore cursor: %w", restoreErr)
	}

	return res
}

// OverwriteAndVerify sets the cursor to value, bypassing the monotonic guard,
// and returns the value read back afterwards.
func OverwriteAndVerify(ctx context.Context, s Store, value uint64) (uint64, error) {
	if _, err := s.Overwrite(ctx, value); err != nil {
		return 0, err
	}
	return s.Get(ctx), nil
}
