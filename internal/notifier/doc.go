// Package notifier is the public entry point of calcnotify.
//
// A Notifier turns a calculation's intermediate results into a report
// bundle on disk (folder + meta.json + rendered figures + assembled PDF)
// and, when a messenger is configured, hands the bundle to a small pool of
// background delivery workers. Report() never blocks on network I/O.
//
// Local artifact production is deliberately forgiving: a failing figure, a
// missing source file or a broken PDF assembly degrade that one artifact
// and never discard the rest of the report. Remote delivery failures stop
// at the worker boundary and are routed through the critical-error channel.
package notifier
