// Package info holds the client's identity: name and version, plus build
// details read from the binary. The transport derives its user agent from it.
package info

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

var (
	name    = "Driftbase"
	version = "dev build"
	license = "[license unknown]"

	info     *Info
	loadInfo sync.Once
)

// Info holds the client's meta information.
type Info struct {
	Name    string
	Version string
	License string

	Commit     string
	CommitTime string
	Dirty      bool

	debug.BuildInfo
}

// Set overrides the meta information. Programs embedding the client can call
// this early to identify themselves to servers.
func Set(setName string, setVersion string, setLicenseName string) {
	if setName != "" {
		name = setName
	}
	if setVersion != "" {
		version = setVersion
	}
	if setLicenseName != "" {
		license = setLicenseName
	}
}

// GetInfo returns all the meta information about the client.
func GetInfo() *Info {
	loadInfo.Do(func() {
		buildInfo, ok := debug.ReadBuildInfo()
		if !ok {
			buildInfo = &debug.BuildInfo{}
		}
		buildSettings := make(map[string]string)
		for _, setting := range buildInfo.Settings {
			buildSettings[setting.Key] = setting.Value
		}

		info = &Info{
			Name:       name,
			Version:    version,
			License:    license,
			Commit:     buildSettings["vcs.revision"],
			CommitTime: buildSettings["vcs.time"],
			Dirty:      buildSettings["vcs.modified"] == "true",
			BuildInfo:  *buildInfo,
		}

		if info.Commit == "" {
			info.Commit = "[commit unknown]"
		}
		if info.CommitTime == "" {
			info.CommitTime = "[commit time unknown]"
		}
	})

	return info
}

// Version returns the short version string.
func Version() string {
	info := GetInfo()

	if info.Dirty {
		return version + "*"
	}

	return version
}

// UserAgent returns the identifier sent to servers with every request.
func UserAgent() string {
	return fmt.Sprintf("%s/%s",
		strings.ToLower(name),
		strings.ReplaceAll(Version(), " ", "-"),
	)
}

// FullVersion returns the full and detailed version string.
func FullVersion() string {
	info := GetInfo()
	builder := new(strings.Builder)

	builder.WriteString(fmt.Sprintf("%s %s\n", info.Name, Version()))

	builder.WriteString(fmt.Sprintf("\nbuilt with %s (%s) %s/%s\n", runtime.Version(), runtime.Compiler, runtime.GOOS, runtime.GOARCH))

	builder.WriteString(fmt.Sprintf("\ncommit %s\n", info.Commit))
	builder.WriteString(fmt.Sprintf("  at %s\n", info.CommitTime))

	builder.WriteString(fmt.Sprintf("\nLicensed under the %s license.", license))

	return builder.String()
}
