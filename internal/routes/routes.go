// Package routes defines the closed set of console screens and the
// guard that decides which screen may actually be shown.
package routes

// ID names a console screen. The set is closed; persisted values outside
// it are treated as unknown and ignored.
type ID string

const (
	Login         ID = "login"
	Signup        ID = "signup"
	Dashboard     ID = "dashboard"
	Flow          ID = "flow"
	Conversations ID = "conversations"
	Bots          ID = "bots"
	Config        ID = "config"
	Profile       ID = "profile"
	Workspaces    ID = "workspaces"
)

// All lists every known route, auth routes first.
var All = []ID{Login, Signup, Dashboard, Flow, Conversations, Bots, Config, Profile, Workspaces}

// Protected lists the routes that require an active session.
var Protected = []ID{Dashboard, Flow, Conversations, Bots, Config, Profile, Workspaces}

func Known(id ID) bool {
	for _, r := range All {
		if r == id {
			return true
		}
	}
	return false
}

// IsAuth reports whether id is one of the two always-reachable auth screens.
func IsAuth(id ID) bool {
	return id == Login || id == Signup
}

// IsProtected reports whether id requires an authenticated session.
func IsProtected(id ID) bool {
	return Known(id) && !IsAuth(id)
}

// Resolve computes the route the shell should render for a navigation
// request. Auth screens are always reachable; protected screens fall back
// to the login screen when no session is present.
func Resolve(authed bool, requested ID) ID {
	if !Known(requested) {
		requested = Dashboard
	}
	if IsAuth(requested) {
		return requested
	}
	if !authed {
		return Login
	}
	return requested
}

// Initial picks the route for a cold start. A persisted route is resumed
// when it is an auth route or the session is authenticated; otherwise the
// default is dashboard for authenticated sessions and login for anonymous
// ones.
func Initial(authed bool, persisted ID) ID {
	if Known(persisted) && (IsAuth(persisted) || authed) {
		return persisted
	}
	if authed {
		return Dashboard
	}
	return Login
}

// Demote is the reactive companion to Resolve: when the session goes away
// while a protected route is showing, it returns (login, true). In every
// other case the current route stands.
func Demote(authed bool, current ID) (ID, bool) {
	if !authed && IsProtected(current) {
		return Login, true
	}
	return current, false
}

// Title returns the human label shown in the header for a route.
func Title(id ID) string {
	switch id {
	case Login:
		return "Sign in"
	case Signup:
		return "Create account"
	case Dashboard:
		return "Dashboard"
	case Flow:
		return "Flow Builder"
	case Conversations:
		return "Conversations"
	case Bots:
		return "Bots"
	case Config:
		return "Channels & Numbers"
	case Profile:
		return "Profile"
	case Workspaces:
		return "Workspaces"
	default:
		return string(id)
	}
}
