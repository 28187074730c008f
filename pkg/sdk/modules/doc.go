// Package modules enumerates the executable images loaded into the current
// process and computes a stable debug identifier for each of them.
//
// The module list is derived from /proc/self/maps. Consecutive mappings of the
// same file are folded into a Module, and each Module is inspected in place,
// reinterpreting live memory as an ELF image without touching the file on disk.
// The identifier is taken from the NT_GNU_BUILD_ID note when present; otherwise
// a fingerprint of the first page of the .text section is used.
//
// The result is cached process-wide. The first call to GetModulesList scans the
// address space, later calls share the same frozen List until ClearModuleCache
// is called:
//
//	list := modules.GetModulesList()
//	defer list.DecRef()
//	for _, img := range list.Images() {
//	    fmt.Println(img.CodeFile, img.DebugID)
//	}
//
// On platforms other than Linux the list is always empty.
package modules
