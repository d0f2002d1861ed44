// Package openapi derives an OpenAPI 3.0 document from the routes mounted on
// the echo server, so the published surface never drifts from the router.
package openapi

import (
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// RouteSource lists the mounted routes; (*echo.Echo).Routes satisfies it.
type RouteSource func() []*echo.Route

// Generator builds the document on demand.
type Generator struct {
	routes  RouteSource
	title   string
	version string
	prefix  string
	public  map[string]bool
}

// NewGenerator documents every route under prefix. Routes listed in public
// (as "METHOD path") are marked as not requiring a bearer token.
func NewGenerator(routes RouteSource, title, version, prefix string, public ...string) *Generator {
	g := &Generator{routes: routes, title: title, version: version, prefix: prefix, public: map[string]bool{}}
	for _, p := range public {
		g.public[p] = true
	}
	return g
}

var pathParam = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

var documented = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true,
}

// GenerateSpec produces the OpenAPI 3.0 document as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := make(map[string]interface{})
	tagSet := map[string]bool{}

	routes := g.routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	for _, r := range routes {
		if !documented[r.Method] || !strings.HasPrefix(r.Path, g.prefix+"/") {
			continue
		}
		rel := strings.TrimPrefix(r.Path, g.prefix)
		tag := strings.SplitN(strings.TrimPrefix(rel, "/"), "/", 2)[0]
		tagSet[tag] = true

		op := map[string]interface{}{
			"operationId": tag + "." + handlerName(r.Name),
			"tags":        []string{tag},
			"responses":   responsesFor(r.Method),
		}
		if params := pathParameters(r.Path); len(params) > 0 {
			op["parameters"] = params
		}
		if g.public[r.Method+" "+r.Path] {
			op["security"] = []map[string][]string{}
		}

		oasPath := pathParam.ReplaceAllString(r.Path, "{$1}")
		item, _ := paths[oasPath].(map[string]interface{})
		if item == nil {
			item = map[string]interface{}{}
			paths[oasPath] = item
		}
		item[strings.ToLower(r.Method)] = op
	}

	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	tagObjs := make([]map[string]string, 0, len(tags))
	for _, t := range tags {
		tagObjs = append(tagObjs, map[string]string{"name": t})
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   g.title,
			"version": g.version,
		},
		"tags":  tagObjs,
		"paths": paths,
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
			"schemas": map[string]interface{}{
				"Error": errorSchema(),
			},
		},
		"security": []map[string][]string{{"bearerAuth": {}}},
	}
}

// handlerName turns "pkg.(*Handler).CheckIn-fm" into "CheckIn".
func handlerName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

func pathParameters(path string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, m := range pathParam.FindAllStringSubmatch(path, -1) {
		schema := map[string]string{"type": "string"}
		if m[1] == "id" || strings.HasSuffix(m[1], "_id") {
			schema["format"] = "uuid"
		}
		out = append(out, map[string]interface{}{
			"name": m[1], "in": "path", "required": true, "schema": schema,
		})
	}
	return out
}

func responsesFor(method string) map[string]interface{} {
	ok := "200"
	switch method {
	case http.MethodPost:
		ok = "201"
	case http.MethodDelete:
		ok = "204"
	}
	errRef := map[string]interface{}{
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/Error"},
			},
		},
	}
	withDesc := func(desc string) map[string]interface{} {
		out := map[string]interface{}{"description": desc}
		for k, v := range errRef {
			out[k] = v
		}
		return out
	}
	return map[string]interface{}{
		ok:    map[string]interface{}{"description": "Success"},
		"400": withDesc("Validation error"),
		"401": withDesc("Missing or invalid token"),
		"403": withDesc("Permission denied"),
		"404": withDesc("Not found"),
	}
}

func errorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"detail":  map[string]string{"type": "string"},
			"code":    map[string]string{"type": "string"},
			"details": map[string]string{"type": "object"},
		},
	}
}

// RegisterRoutes serves the document at /openapi.json on g.
func (g *Generator) RegisterRoutes(group *echo.Group) {
	group.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
}
