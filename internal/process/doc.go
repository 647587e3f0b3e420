// Package process provides the handle for one supervised subprocess.
//
// A Process is started with Start and then owned by exactly one supervisor:
//   - RequestTermination sends SIGINT to the process and returns immediately
//   - Kill sends SIGKILL to the whole process group
//   - Done is closed once the process has been reaped
//   - Wait blocks until then and returns the cached ExitStatus
//
// The process is reaped by a single internal goroutine, so Wait may be called
// any number of times from any goroutine.
//
// Output lines from stdout and stderr are forwarded to an optional
// OutputHandler and logged at the level chosen by an optional LogParser:
//
//	proc, err := process.Start(process.Spec{
//	    ID:        "stream1",
//	    Path:      "ffmpeg",
//	    Args:      args,
//	    Logger:    logger,
//	    LogParser: ffmpeg.ParseLogLevel,
//	})
//	if err != nil {
//	    return err
//	}
//	proc.RequestTermination()
//	status := proc.Wait()
package process
