package web

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/kinds"
	"github.com/pkg/errors"

	"github.com/operify/opsgate/src/domain/repository"
)

type graphqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// graphqlAuth sniffs the query to decide whether the API token
// is required. Only queries that touch nothing but health may
// pass without one.
func (self *Web) graphqlAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			self.ClientError(w, errors.WithMessage(err, "While reading the request body"))
			return
		}
		req.Body = io.NopCloser(bytes.NewReader(body))

		request := graphqlRequest{}
		if err := json.Unmarshal(body, &request); err != nil {
			self.ClientError(w, errors.WithMessage(err, "While decoding the request body"))
			return
		}

		query := strings.ToLower(request.Query)
		open := strings.Contains(query, "health")
		for _, guarded := range []string{"oracle", "jenkins", "table", "build"} {
			if strings.Contains(query, guarded) {
				open = false
				break
			}
		}

		if !open {
			given := req.Header.Get("X-API-Token")
			if self.Config.ApiToken == "" ||
				subtle.ConstantTimeCompare([]byte(given), []byte(self.Config.ApiToken)) != 1 {
				self.Unauthorized(w, errors.New("Invalid API token"))
				return
			}
		}

		next.ServeHTTP(w, req)
	})
}

func (self *Web) GraphqlPost(w http.ResponseWriter, req *http.Request) {
	self.graphqlOnce.Do(func() {
		self.graphqlSchema, self.graphqlErr = self.buildGraphqlSchema()
	})
	if self.graphqlErr != nil {
		self.ServerError(w, self.graphqlErr)
		return
	}

	request := graphqlRequest{}
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		self.ClientError(w, errors.WithMessage(err, "While decoding the request body"))
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         self.graphqlSchema,
		RequestString:  request.Query,
		OperationName:  request.OperationName,
		VariableValues: request.Variables,
		Context:        req.Context(),
	})

	self.json(w, result, http.StatusOK)
}

var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value.",
	Serialize:   func(value any) any { return value },
	ParseValue:  func(value any) any { return value },
	ParseLiteral: func(value ast.Value) any {
		return parseJsonLiteral(value)
	},
})

func parseJsonLiteral(value ast.Value) any {
	switch value.GetKind() {
	case kinds.StringValue, kinds.BooleanValue, kinds.EnumValue:
		return value.GetValue()
	case kinds.IntValue:
		parsed, _ := strconv.ParseInt(value.GetValue().(string), 10, 64)
		return parsed
	case kinds.FloatValue:
		parsed, _ := strconv.ParseFloat(value.GetValue().(string), 64)
		return parsed
	case kinds.ObjectValue:
		obj := map[string]any{}
		for _, field := range value.GetValue().([]*ast.ObjectField) {
			obj[field.Name.Value] = parseJsonLiteral(field.Value)
		}
		return obj
	case kinds.ListValue:
		values := value.GetValue().([]ast.Value)
		list := make([]any, 0, len(values))
		for _, item := range values {
			list = append(list, parseJsonLiteral(item))
		}
		return list
	default:
		return nil
	}
}

func (self *Web) buildGraphqlSchema() (graphql.Schema, error) {
	tableType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Table",
		Fields: graphql.Fields{
			"name": &graphql.Field{Type: graphql.String},
		},
	})

	tableDataType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TableData",
		Fields: graphql.Fields{
			"tableName": &graphql.Field{Type: graphql.String},
			"data":      &graphql.Field{Type: jsonScalar},
		},
	})

	jobType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Job",
		Fields: graphql.Fields{
			"name":   &graphql.Field{Type: graphql.String},
			"url":    &graphql.Field{Type: graphql.String},
			"status": &graphql.Field{Type: graphql.String},
		},
	})

	buildResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BuildResult",
		Fields: graphql.Fields{
			"jobName":     &graphql.Field{Type: graphql.String},
			"buildNumber": &graphql.Field{Type: graphql.Int},
			"status":      &graphql.Field{Type: graphql.String},
		},
	})

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"health": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return "Service is healthy", nil
				},
			},
			"oracleTables": &graphql.Field{
				Type: graphql.NewList(tableType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					tables, err := self.CatalogService.GetTables()
					if err != nil {
						return nil, err
					}
					result := make([]map[string]any, 0, len(tables))
					for _, table := range tables {
						result = append(result, map[string]any{"name": table})
					}
					return result, nil
				},
			},
			"tableData": &graphql.Field{
				Type: graphql.NewList(tableDataType),
				Args: graphql.FieldConfigArgument{
					"tableName": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
					"offset":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					tableName := p.Args["tableName"].(string)
					page := &repository.Page{
						Limit:  p.Args["limit"].(int),
						Offset: p.Args["offset"].(int),
					}
					rows, err := self.CatalogService.GetTableData(tableName, page)
					if err != nil {
						return nil, err
					}
					result := make([]map[string]any, 0, len(rows))
					for _, row := range rows {
						result = append(result, map[string]any{
							"tableName": tableName,
							"data":      row.Data,
						})
					}
					return result, nil
				},
			},
			"jenkinsJobs": &graphql.Field{
				Type: graphql.NewList(jobType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return self.JenkinsService.GetJobs(p.Context)
				},
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"buildJob": &graphql.Field{
				Type: buildResultType,
				Args: graphql.FieldConfigArgument{
					"jobName":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"parameters": &graphql.ArgumentConfig{Type: jsonScalar},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					jobName := p.Args["jobName"].(string)
					params := map[string]string{}
					if raw, ok := p.Args["parameters"].(map[string]any); ok {
						for key, value := range raw {
							params[key] = fmt.Sprint(value)
						}
					}

					buildNumber, err := self.JenkinsService.TriggerBuild(p.Context, jobName, params)
					if err != nil {
						return nil, err
					}
					status := "triggered"
					if buildNumber <= 0 {
						status = "failed"
					}
					return map[string]any{
						"jobName":     jobName,
						"buildNumber": buildNumber,
						"status":      status,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}
