package server

import (
	"crypto/subtle"
	"log"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"git.sr.ht/~jakintosh/ssoguard/pkg/api"
)

type adminCredentials struct {
	user string
	hash []byte
}

func (a *adminCredentials) check(user, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
	// always compare the password so timing does not reveal the user name
	passwordOK := bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
	return userOK && passwordOK
}

func (a *adminCredentials) require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || !a.check(user, password) {
			log.Printf("%s %s: admin authentication failed\n", r.Method, r.URL.Path)
			res := api.NewResponse("api.admin")
			res.Fail(http.StatusUnauthorized, "admin authentication failed")
			w.Header().Set("WWW-Authenticate", `Basic realm="ssoguard"`)
			res.Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashPassword returns the bcrypt hash to configure as the admin password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
