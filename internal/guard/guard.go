package guard

import (
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"photoflow-web/internal/model"
)

// Class is the access level of a path.
type Class int

const (
	// ClassOpen paths are not listed anywhere and pass through untouched.
	ClassOpen Class = iota
	ClassPublic
	ClassProtected
	ClassAdmin
)

func (c Class) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassProtected:
		return "protected"
	case ClassAdmin:
		return "admin"
	default:
		return "open"
	}
}

var (
	ErrNoToken      = errors.New("no token")
	ErrTokenExpired = errors.New("token expired")
	ErrNoExpiry     = errors.New("token has no exp claim")
)

// Routes lists the static route prefixes the guard classifies against.
type Routes struct {
	Public    []string
	Protected []string
	Admin     []string
	// AuthPages are public pages a signed-in user is sent away from.
	AuthPages []string
	Landing   string
	Login     string
}

func DefaultRoutes() Routes {
	return Routes{
		Public:    []string{"/", "/login", "/register", "/verify-email", "/forgot-password", "/reset-password", "/health", "/static", "/avatar"},
		Protected: []string{"/dashboard", "/profile", "/tenant", "/galleries"},
		Admin:     []string{"/admin"},
		AuthPages: []string{"/login", "/register"},
		Landing:   "/profile",
		Login:     "/login",
	}
}

type Action int

const (
	Allow Action = iota
	Redirect
)

type Decision struct {
	Action   Action
	Class    Class
	Location string
	// Claims is set when a valid token was presented.
	Claims *model.Claims
}

type route struct {
	prefix string
	class  Class
}

// Guard decides page access from the path and the access token alone.
type Guard struct {
	routes    []route
	authPages map[string]struct{}
	landing   string
	login     string
}

func New(cfg Routes) *Guard {
	g := &Guard{
		authPages: make(map[string]struct{}, len(cfg.AuthPages)),
		landing:   cfg.Landing,
		login:     cfg.Login,
	}
	if g.landing == "" {
		g.landing = "/profile"
	}
	if g.login == "" {
		g.login = "/login"
	}

	add := func(prefixes []string, class Class) {
		for _, p := range prefixes {
			g.routes = append(g.routes, route{prefix: normalize(p), class: class})
		}
	}
	add(cfg.Public, ClassPublic)
	add(cfg.Protected, ClassProtected)
	add(cfg.Admin, ClassAdmin)

	// Longest prefix first, so the first match wins.
	sort.SliceStable(g.routes, func(i, j int) bool {
		return len(g.routes[i].prefix) > len(g.routes[j].prefix)
	})

	for _, p := range cfg.AuthPages {
		g.authPages[normalize(p)] = struct{}{}
	}

	return g
}

// Classify returns the class of the longest listed prefix that matches path on
// a segment boundary. "/" only ever matches itself.
func (g *Guard) Classify(path string) Class {
	path = normalize(path)
	for _, r := range g.routes {
		if matches(path, r.prefix) {
			return r.class
		}
	}

	return ClassOpen
}

// Decide is the access decision for path with token at time now.
func (g *Guard) Decide(path string, token string, now time.Time) Decision {
	path = normalize(path)
	class := g.Classify(path)

	switch class {
	case ClassPublic:
		if _, auth := g.authPages[path]; auth {
			if claims, err := Decode(token, now); err == nil {
				return Decision{Action: Redirect, Class: class, Location: g.landing, Claims: claims}
			}
		}
		return Decision{Action: Allow, Class: class}

	case ClassProtected, ClassAdmin:
		claims, err := Decode(token, now)
		if err != nil {
			return Decision{Action: Redirect, Class: class, Location: g.LoginURL(path)}
		}
		if class == ClassAdmin && !claims.PlatformRole.AtLeast(model.RolePlatformAdmin) {
			return Decision{Action: Redirect, Class: class, Location: g.landing, Claims: claims}
		}
		return Decision{Action: Allow, Class: class, Claims: claims}

	default:
		return Decision{Action: Allow, Class: class}
	}
}

// LoginURL is the login page with from set to the path to return to.
func (g *Guard) LoginURL(from string) string {
	if from == "" || from == g.login {
		return g.login
	}

	return g.login + "?" + url.Values{"from": {from}}.Encode()
}

// Decode reads token claims without verifying the signature and rejects a
// token whose exp is not strictly after now.
func Decode(token string, now time.Time) (*model.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}

	claims := &model.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil {
		return nil, ErrNoExpiry
	}
	if !claims.ExpiresAt.Time.After(now) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

func matches(path string, prefix string) bool {
	if prefix == "/" {
		return path == "/"
	}

	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}

	return path
}
