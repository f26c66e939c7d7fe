package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable installs a read-only global `platform` table describing
// info. It must run before formula code is evaluated. A nil info injects a
// table with only the helper functions, which is what formula linting uses
// when no host platform applies.
func InjectPlatformTable(L *lua.LState, info *Info) {
	t := L.NewTable()

	if info != nil {
		L.SetField(t, "os", lua.LString(info.OS))
		L.SetField(t, "arch", lua.LString(info.Arch))
		L.SetField(t, "arch_raw", lua.LString(info.ArchRaw))
		L.SetField(t, "libc", lua.LString(info.Libc))

		if key, err := info.Key(); err == nil {
			L.SetField(t, "key", lua.LString(key.String()))
		}

		L.SetField(t, "is_linux", lua.LBool(info.IsLinux()))
		L.SetField(t, "is_macos", lua.LBool(info.IsMacOS()))
		L.SetField(t, "is_arm64", lua.LBool(info.IsARM64()))
		L.SetField(t, "is_amd64", lua.LBool(info.IsAMD64()))
		L.SetField(t, "is_musl", lua.LBool(info.IsMusl()))

		if info.IsLinux() && info.Platform != "" {
			distro := L.NewTable()
			L.SetField(distro, "id", lua.LString(info.Platform))
			L.SetField(distro, "family", lua.LString(info.Family))
			L.SetField(distro, "version", lua.LString(info.Version))
			L.SetField(t, "distro", distro)
		}
	}

	// when(cond, value) returns value if cond is truthy, nil otherwise.
	L.SetField(t, "when", L.NewFunction(func(L *lua.LState) int {
		if L.ToBool(1) {
			L.Push(L.Get(2))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetGlobal("platform", makeReadOnly(L, t))
}

// makeReadOnly returns an empty proxy whose metatable forwards reads to
// table and rejects every write.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only and cannot be modified")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
