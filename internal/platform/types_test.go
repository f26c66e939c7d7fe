package platform

import (
	"errors"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestInfo_Key(t *testing.T) {
	tests := []struct {
		name    string
		info    Info
		want    Key
		wantErr bool
	}{
		{name: "mac arm64", info: Info{OS: "darwin", Arch: "arm64"}, want: KeyMacARM64},
		{name: "mac amd64", info: Info{OS: "darwin", Arch: "amd64"}, want: KeyMacX8664},
		{name: "mac ignores libc", info: Info{OS: "darwin", Arch: "arm64", Libc: LibcMusl}, want: KeyMacARM64},
		{name: "linux arm64 glibc", info: Info{OS: "linux", Arch: "arm64", Libc: LibcGlibc}, want: KeyLinuxARM64Glibc},
		{name: "linux arm64 musl", info: Info{OS: "linux", Arch: "arm64", Libc: LibcMusl}, want: KeyLinuxARM64Musl},
		{name: "linux amd64 glibc", info: Info{OS: "linux", Arch: "amd64", Libc: LibcGlibc}, want: KeyLinuxX8664Glibc},
		{name: "linux amd64 musl", info: Info{OS: "linux", Arch: "amd64", Libc: LibcMusl}, want: KeyLinuxX8664Musl},
		{name: "linux unknown libc defaults glibc", info: Info{OS: "linux", Arch: "amd64"}, want: KeyLinuxX8664Glibc},
		{name: "windows", info: Info{OS: "windows", Arch: "amd64"}, wantErr: true},
		{name: "bad arch", info: Info{OS: "linux", Arch: "386"}, wantErr: true},
		{name: "bad libc", info: Info{OS: "linux", Arch: "amd64", Libc: "uclibc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.info.Key()
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedPlatform) {
					t.Fatalf("Key() error = %v, want ErrUnsupportedPlatform", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Key() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Key() = %s, want %s", got, tt.want)
			}
			if !got.Valid() {
				t.Errorf("Key() returned invalid key %s", got)
			}
		})
	}
}

func TestFromKey_RoundTrip(t *testing.T) {
	for _, key := range AllKeys {
		info, err := FromKey(key)
		if err != nil {
			t.Fatalf("FromKey(%s) error = %v", key, err)
		}
		got, err := info.Key()
		if err != nil {
			t.Fatalf("Key() error = %v", err)
		}
		if got != key {
			t.Errorf("FromKey(%s).Key() = %s", key, got)
		}
	}

	if _, err := FromKey("windows-x86_64"); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("FromKey(windows) error = %v", err)
	}
}

func TestParseLibc(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "musl", want: LibcMusl},
		{in: " MUSL ", want: LibcMusl},
		{in: "glibc", want: LibcGlibc},
		{in: "gnu", want: LibcGlibc},
		{in: "bionic", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseLibc(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLibc(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLibc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMapFamily(t *testing.T) {
	if got := mapFamily(" Ubuntu "); got != FamilyDebian {
		t.Errorf("mapFamily(ubuntu) = %q", got)
	}
	if got := mapFamily("plan9"); got != FamilyUnknown {
		t.Errorf("mapFamily(plan9) = %q", got)
	}
}

func TestInjectPlatformTable(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	InjectPlatformTable(L, &Info{OS: "linux", Arch: "amd64", Libc: LibcMusl, Platform: "alpine", Family: FamilyAlpine})

	script := `
		assert(platform.os == "linux")
		assert(platform.key == "linux-x86_64-musl")
		assert(platform.is_musl == true)
		assert(platform.is_macos == false)
		assert(platform.distro.id == "alpine")
		assert(platform.when(platform.is_linux, "yes") == "yes")
		assert(platform.when(platform.is_macos, "yes") == nil)
	`
	if err := L.DoString(script); err != nil {
		t.Fatalf("script failed: %v", err)
	}

	if err := L.DoString(`platform.os = "darwin"`); err == nil {
		t.Error("expected write to platform table to fail")
	}
}

func TestInjectPlatformTable_NilInfo(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	InjectPlatformTable(L, nil)
	if err := L.DoString(`assert(platform.os == nil); assert(platform.when(true, 1) == 1)`); err != nil {
		t.Fatalf("script failed: %v", err)
	}
}
