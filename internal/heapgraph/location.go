package heapgraph

import "strings"

// LocationPackage maps an install-path prefix to its package name.
// Substring entries match anywhere in the location instead of the start.
type LocationPackage struct {
	Prefix    string
	Package   string
	Substring bool
}

// knownLocations lists system apps whose install paths do not follow the
// /data/app convention. Order matters; first match wins. New install
// layouts can be added at runtime through Tracker.AddKnownLocation.
var knownLocations = []LocationPackage{
	{Prefix: "/system_ext/priv-app/SystemUIGoogle/SystemUIGoogle.apk", Package: "com.android.systemui"},
	{Prefix: "/product/priv-app/Phonesky/Phonesky.apk", Package: "com.android.vending"},
	{Prefix: "/product/app/Maps/Maps.apk", Package: "com.google.android.apps.maps"},
	{Prefix: "/system_ext/priv-app/NexusLauncherRelease/NexusLauncherRelease.apk", Package: "com.google.android.apps.nexuslauncher"},
	{Prefix: "/product/app/Photos/Photos.apk", Package: "com.google.android.apps.photos"},
	{Prefix: "/product/priv-app/WellbeingPrebuilt/WellbeingPrebuilt.apk", Package: "com.google.android.apps.wellbeing"},
	{Prefix: "MatchMaker", Package: "com.google.android.as", Substring: true},
	{Prefix: "/product/app/PrebuiltGmail/PrebuiltGmail.apk", Package: "com.google.android.gm"},
	{Prefix: "/product/priv-app/PrebuiltGmsCore/PrebuiltGmsCore", Package: "com.google.android.gms"},
	{Prefix: "/product/priv-app/Velvet/Velvet.apk", Package: "com.google.android.googlequicksearchbox"},
	{Prefix: "/product/app/LatinIMEGooglePrebuilt/LatinIMEGooglePrebuilt.apk", Package: "com.google.android.inputmethod.latin"},
}

// packageFromApp parses the "/data/app/<package>-<suffix>/..." install
// convention, including the nested "/data/app/~~<hash>/<package>-<hash>/"
// layout of newer Android versions.
func packageFromApp(location string) (string, bool) {
	rest := strings.TrimPrefix(location, "/data/app/")
	slash := strings.IndexByte(rest, '/')
	if slash == -1 {
		return "", false
	}
	var segment string
	if second := strings.IndexByte(rest[slash+1:], '/'); second == -1 {
		segment = rest[:slash]
	} else {
		segment = rest[slash+1 : slash+1+second]
	}
	minus := strings.IndexByte(segment, '-')
	if minus == -1 {
		return "", false
	}
	return segment[:minus], true
}

// PackageFromLocation resolves an install location to a package name. The
// hardcoded well-known prefixes are checked first, then any prefixes added
// through AddKnownLocation, then the generic /data/app convention. A
// /data/app path that cannot be parsed increments the location-parse-error
// counter and yields absent; this is never fatal.
func (t *Tracker) PackageFromLocation(location string) (string, bool) {
	for _, k := range knownLocations {
		if matchLocation(location, k) {
			return k.Package, true
		}
	}
	for _, k := range t.extraLocations {
		if matchLocation(location, k) {
			return k.Package, true
		}
	}
	if strings.HasPrefix(location, "/data/app/") {
		pkg, ok := packageFromApp(location)
		if !ok {
			t.logger.Debug("failed to parse install location %q", location)
			t.store.Stats().Increment(StatLocationParseError)
			return "", false
		}
		return pkg, true
	}
	return "", false
}

func matchLocation(location string, k LocationPackage) bool {
	if k.Substring {
		return strings.Contains(location, k.Prefix)
	}
	return strings.HasPrefix(location, k.Prefix)
}
