package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// MonitorChecker probes a monitored service and evaluates
// the configured success and failure conditions on its response.
type MonitorChecker interface {
	ServiceType() string
	CheckServiceStatus(ctx context.Context, monitorUrl string) map[string]any
	CheckConditions(response map[string]any, conditionsJson *string) bool
}

type httpChecker struct {
	logger zerolog.Logger
	client *retryablehttp.Client
}

func newHttpChecker(logger zerolog.Logger) *httpChecker {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &httpChecker{
		logger: logger,
		client: client,
	}
}

func (self httpChecker) ServiceType() string { return "http" }

func (self httpChecker) CheckServiceStatus(ctx context.Context, monitorUrl string) map[string]any {
	request, err := retryablehttp.NewRequestWithContext(ctx, "GET", monitorUrl, nil)
	if err != nil {
		return map[string]any{
			"error":     "HTTP request failed: " + err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	}

	response, err := self.client.Do(request)
	if err != nil {
		return map[string]any{
			"error":     "HTTP request failed: " + err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return map[string]any{
			"error":     "HTTP request failed: " + err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	}

	result := map[string]any{
		"status_code": response.StatusCode,
		"body":        string(body),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if strings.Contains(response.Header.Get("Content-Type"), "application/json") {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			result["json"] = parsed
		}
	}

	return result
}

func (self httpChecker) CheckConditions(response map[string]any, conditionsJson *string) bool {
	// A response with an error can never satisfy a condition.
	if conditionsJson == nil || *conditionsJson == "" {
		return false
	}
	if _, failed := response["error"]; failed {
		return false
	}

	var conditions map[string]any
	if err := json.Unmarshal([]byte(*conditionsJson), &conditions); err != nil {
		self.logger.Error().Err(err).Msg("Error parsing HTTP conditions")
		return false
	}

	if expected, ok := conditions["status_code"]; ok {
		statusCode, _ := response["status_code"].(int)
		if expectedList, isList := expected.([]any); isList {
			found := false
			for _, candidate := range expectedList {
				if jsonNumberEquals(candidate, statusCode) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		} else if !jsonNumberEquals(expected, statusCode) {
			return false
		}
	}

	if fields, ok := conditions["json_fields"].(map[string]any); ok {
		jsonData, hasJson := response["json"]
		if !hasJson {
			return false
		}
		for fieldPath, expected := range fields {
			value, found := lookupFieldPath(jsonData, fieldPath)
			if !found || !reflect.DeepEqual(value, expected) {
				return false
			}
		}
	}

	if search, ok := conditions["body_contains"].(string); ok {
		body, _ := response["body"].(string)
		if !strings.Contains(body, search) {
			return false
		}
	}

	return true
}

type databaseChecker struct {
	logger zerolog.Logger
}

func newDatabaseChecker(logger zerolog.Logger) *databaseChecker {
	return &databaseChecker{logger: logger}
}

func (self databaseChecker) ServiceType() string { return "database" }

// CheckServiceStatus runs a probe query against the database given in
// the monitor URL. The query travels in the "?query=" suffix and
// defaults to a trivial health check.
func (self databaseChecker) CheckServiceStatus(ctx context.Context, monitorUrl string) map[string]any {
	connectionUrl := monitorUrl
	query := "SELECT 1 FROM dual"
	if idx := strings.Index(monitorUrl, "?query="); idx >= 0 {
		connectionUrl = monitorUrl[:idx]
		query = monitorUrl[idx+len("?query="):]
	}

	db, err := sql.Open("oracle", connectionUrl)
	if err != nil {
		return map[string]any{
			"error":     "Database check failed: " + err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	}
	defer db.Close()

	start := time.Now()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return map[string]any{
			"error":     "Database check failed: " + err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return map[string]any{
			"error":     "Database check failed: " + err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	}

	data := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return map[string]any{
				"error":     "Database check failed: " + err.Error(),
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}
		}
		row := map[string]any{}
		for i, column := range columns {
			if v, ok := values[i].([]byte); ok {
				row[column] = string(v)
			} else {
				row[column] = values[i]
			}
		}
		data = append(data, row)
	}

	return map[string]any{
		"status":                "success",
		"query":                 query,
		"row_count":             len(data),
		"response_time_seconds": time.Since(start).Seconds(),
		"timestamp":             time.Now().UTC().Format(time.RFC3339),
		"data":                  data,
	}
}

func (self databaseChecker) CheckConditions(response map[string]any, conditionsJson *string) bool {
	if conditionsJson == nil || *conditionsJson == "" {
		return false
	}
	if _, failed := response["error"]; failed {
		return false
	}

	var conditions map[string]any
	if err := json.Unmarshal([]byte(*conditionsJson), &conditions); err != nil {
		self.logger.Error().Err(err).Msg("Error parsing database conditions")
		return false
	}

	rowCount, _ := response["row_count"].(int)

	if minCount, ok := conditions["min_row_count"]; ok {
		if float64(rowCount) < asFloat(minCount) {
			return false
		}
	}
	if maxCount, ok := conditions["max_row_count"]; ok {
		if float64(rowCount) > asFloat(maxCount) {
			return false
		}
	}
	if maxTime, ok := conditions["max_response_time"]; ok {
		responseTime, isFloat := response["response_time_seconds"].(float64)
		if !isFloat || responseTime > asFloat(maxTime) {
			return false
		}
	}

	if fields, ok := conditions["data_fields"].(map[string]any); ok {
		data, _ := response["data"].([]map[string]any)
		if len(data) > 0 {
			// Conditions apply to the first row only.
			for fieldPath, expected := range fields {
				value, found := lookupFieldPath(data[0], fieldPath)
				if !found || !reflect.DeepEqual(value, expected) {
					return false
				}
			}
		}
	}

	return true
}

// lookupFieldPath walks nested maps along a dotted path like "result.status".
func lookupFieldPath(data any, path string) (any, bool) {
	value := data
	for _, key := range strings.Split(path, ".") {
		asMap, isMap := value.(map[string]any)
		if !isMap {
			return nil, false
		}
		next, found := asMap[key]
		if !found {
			return nil, false
		}
		value = next
	}
	return value, true
}

func jsonNumberEquals(expected any, actual int) bool {
	return asFloat(expected) == float64(actual)
}

func asFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
