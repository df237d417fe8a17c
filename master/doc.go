// Package master implements the controlling side of the turntable protocol.
//
// A Session owns the bus connection to one turntable. It serializes every
// transaction, polls the status while a rotation runs, and recovers from
// stalled rotations by re-issuing the command with a shorter ramp distance,
// a bounded number of times.
//
// Failures are reported as *FaultError values whose kind distinguishes a
// corrupted bus (ErrCommunicationFault), a rejected command (ErrProtocolFault)
// and a stuck mechanism (ErrRotationFailed):
//
//	res, err := sess.RotateTo(ctx, 180)
//	switch {
//	case errors.Is(err, master.ErrRotationFailed):
//		// inspect the hardware
//	case errors.Is(err, master.ErrCommunicationFault):
//		// retry on a quieter bus
//	case err == nil && res.Warning != nil:
//		// arrived, but not exactly on target
//	}
package master
