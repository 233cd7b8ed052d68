// Package hub contains the session supervisor, the module registry and the
// hub orchestrator.
//
// The hub opens every configured serial port and spawns one session worker
// per live link. A session reads command lines, recognizes the global
// special commands (ATM, ATH, ATR), and routes everything else to the active
// content module. Modules are registered behind a uniform contract and can
// be hot-reloaded under a new generation without touching running sessions;
// a module that fails or panics is contained at the supervisor boundary and
// never takes the hub down.
//
// A session hands exclusive ownership of its link to the transfer engine or
// the bridge engine for the duration of a run and resumes menu dispatch when
// the engine returns its terminal result.
package hub
