// olmctl drives the lifecycle protocol from the outside.
//
// Its replay command reads a TOML scenario describing instances and a
// sequence of construct / uses / used / destroy / export steps, executes the
// sequence against a fresh registry, and reports the finalize order and the
// final registry state. It exists to make protocol behavior observable
// without writing a test: the same scenarios double as documentation.
//
// Usage:
//
//	olmctl replay -s ex.scenario.toml --log-level debug
//	olmctl replay -s ex.scenario.toml --serve-metrics 127.0.0.1:9464
package main
