package i18n

import "net/http"

const langCookie = "lang"

// Middleware picks the request language from the ?lang= query parameter, the
// lang cookie or Accept-Language, in that order, and stores its localizer in
// the request context. A ?lang= choice is remembered in the cookie.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var prefs []string
		if q := r.URL.Query().Get("lang"); q != "" {
			prefs = append(prefs, q)
			http.SetCookie(w, &http.Cookie{
				Name:     langCookie,
				Value:    q,
				Path:     "/",
				SameSite: http.SameSiteLaxMode,
			})
		}
		if c, err := r.Cookie(langCookie); err == nil && c.Value != "" {
			prefs = append(prefs, c.Value)
		}
		prefs = append(prefs, r.Header.Get("Accept-Language"))

		ctx := WithLocalizer(r.Context(), NewLocalizer(prefs...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
