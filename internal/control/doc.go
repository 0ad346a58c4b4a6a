// Package control provides the feedback controller used by closed-loop
// commands.
//
// [PID] turns a setpoint/measurement pair into a bounded actuator output:
//
//	pid := control.NewPID(0.05, 0, 0.001, 1.0, 1.0) // kp, ki, kd, bound, tolerance
//	pid.SetSetpoint(90)
//	out := pid.Update(sensor.Read(), dt.Seconds())
//	if pid.AtTarget() { ... }
//
// The controller is plain state owned by the control loop goroutine; it is
// not safe for concurrent use.
package control
