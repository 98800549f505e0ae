package middleware

import "github.com/labstack/echo/v4"

// routeKey is the echo context key holding the matched route name.
const routeKey = "gateway.route"

// SetRoute records the route name serving c for logs and metrics.
func SetRoute(c echo.Context, name string) {
	c.Set(routeKey, name)
}

// RouteName returns the route name recorded by SetRoute, or "".
func RouteName(c echo.Context) string {
	name, _ := c.Get(routeKey).(string)
	return name
}
