package common

import (
	"bytes"
	"fmt"
	"runtime"
)

var (
	// PV is the current version object of the program
	PV ProgramVersion
	// Version is the current version of the program
	Version string = "dev"
	// CommitHash is the current commit hash of the program
	CommitHash string = "unknown"
	// BuildTime is the current build time of the program
	BuildTime string = "unknown"
)

func init() {
	PV.Version = Version
	PV.CommitHash = CommitHash
	PV.BuildTime = BuildTime
	PV.GoVersion = runtime.Version()
}

// ProgramVersion is the version object of the program
type ProgramVersion struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
}

// Short returns the short version of the program
func (v ProgramVersion) Short() string {
	return fmt.Sprintf("v%s-%s-%s", v.Version, v.CommitHash, v.BuildTime)
}

// String returns the verbose version of the program
func (v ProgramVersion) String() string {
	var buffer bytes.Buffer
	buffer.WriteString("Crawl Frontier\n")
	buffer.WriteString(fmt.Sprintf("Version: v%s\n", v.Version))
	buffer.WriteString(fmt.Sprintf("Commit: %s\n", v.CommitHash))
	buffer.WriteString(fmt.Sprintf("Build Date: %s\n", v.BuildTime))
	buffer.WriteString(fmt.Sprintf("Go: %s", v.GoVersion))
	return buffer.String()
}
