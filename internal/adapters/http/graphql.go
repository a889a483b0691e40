package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

// buildSchema creates the read-only GraphQL schema over stored issues.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	issueType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Issue",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"GPSDateStamp":   &graphql.Field{Type: graphql.String},
			"Classification": &graphql.Field{Type: graphql.String},
			"Location":       &graphql.Field{Type: graphql.String},
			"point":          &graphql.Field{Type: geoPointType},
			"image_key":      &graphql.Field{Type: graphql.String},
			"filename":       &graphql.Field{Type: graphql.String},
			"distance":       &graphql.Field{Type: graphql.Float},
			"created_at":     &graphql.Field{Type: graphql.String},
		},
	})

	issuePageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "IssuePage",
		Fields: graphql.Fields{
			"items":  &graphql.Field{Type: graphql.NewList(issueType)},
			"total":  &graphql.Field{Type: graphql.Int},
			"offset": &graphql.Field{Type: graphql.Int},
			"limit":  &graphql.Field{Type: graphql.Int},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"issue": &graphql.Field{
				Type:        issueType,
				Description: "Get an issue by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Issues == nil {
						return nil, errors.New("issue store not available")
					}
					issue, err := deps.Issues.GetByID(p.Context, p.Args["id"].(string))
					if errors.Is(err, domain.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return issueToMap(issue), nil
				},
			},
			"issues": &graphql.Field{
				Type:        issuePageType,
				Description: "List issues, newest first",
				Args: graphql.FieldConfigArgument{
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultPageLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Issues == nil {
						return nil, errors.New("issue store not available")
					}
					offset := p.Args["offset"].(int)
					limit := p.Args["limit"].(int)
					issues, total, err := deps.Issues.List(p.Context, offset, limit)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"items":  issuesToMaps(issues),
						"total":  total,
						"offset": offset,
						"limit":  limit,
					}, nil
				},
			},
			"nearby": &graphql.Field{
				Type:        graphql.NewList(issueType),
				Description: "Find issues near a location, closest first",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1000.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultPageLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Issues == nil {
						return nil, errors.New("issue store not available")
					}
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					issues, err := deps.Issues.FindNearby(p.Context, lat, lon, radius, limit)
					if err != nil {
						return nil, err
					}
					return issuesToMaps(issues), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// issueToMap flattens the embedded record so the default resolver sees
// every field by its JSON name.
func issueToMap(is *domain.Issue) map[string]interface{} {
	m := map[string]interface{}{
		"id":             is.ID,
		"GPSDateStamp":   is.GPSDateStamp,
		"Classification": is.Classification,
		"Location":       is.Location,
		"image_key":      is.ImageKey,
		"filename":       is.Filename,
		"created_at":     is.CreatedAt.UTC().Format(time.RFC3339),
	}
	if is.Point != nil {
		m["point"] = map[string]interface{}{"lat": is.Point.Lat, "lon": is.Point.Lon}
	}
	if is.Distance != nil {
		m["distance"] = *is.Distance
	}
	return m
}

func issuesToMaps(issues []domain.Issue) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(issues))
	for i := range issues {
		out = append(out, issueToMap(&issues[i]))
	}
	return out
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
