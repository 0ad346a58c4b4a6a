// Package scheduler arbitrates exclusive ownership of resources between
// commands, one tick at a time.
//
// Every tick follows the same order:
//
//  1. the [Supervisor] advances and may schedule or cancel commands
//  2. every active command initializes (first tick) or executes; commands
//     that report finished are ended and release their resources at once
//  3. default commands run on resources that were unclaimed when the pass
//     started
//  4. cancel, then schedule requests issued by commands during the pass
//     are applied
//
// Nothing in a tick blocks. Conflicts, unknown requests and panicking
// commands degrade to rejected requests, ignored calls and canceled
// commands; Tick itself never fails.
//
// # Usage
//
//	s := scheduler.New(scheduler.WithLogger(log))
//	s.RegisterDefault(robot.Elbow, holdElbow)
//	if err := s.Schedule(moveElbow); errors.Is(err, scheduler.ErrResourceConflict) { ... }
//	for range ticker.C {
//		s.Tick()
//	}
package scheduler
