// Package sdk embeds the coral-modules diagnostics into an application.
//
// The SDK exposes the list of executable images loaded into the process,
// each tagged with the debug identifier a symbol server needs to locate
// matching debug information. Crash and diagnostic reporters include this
// list in their payloads so that addresses can be symbolicated later.
//
// Basic integration:
//
//	s, err := sdk.New(sdk.Config{ServiceName: "my-service"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	images := s.DebugMeta() // []map[string]any for the report payload
//
// The module list is computed once per process. Call ClearModuleCache after
// loading a plugin with dlopen so the next report sees it.
//
// See pkg/sdk/modules for the underlying finder.
package sdk
