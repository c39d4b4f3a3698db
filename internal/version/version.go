// Package version holds build identification, set with -ldflags -X.
package version

var (
	AppName = "Aoi"
	Version = "dev"
	Commit  = "none"
)

// String is "Aoi dev (none)" style.
func String() string {
	return AppName + " " + Version + " (" + Commit + ")"
}
