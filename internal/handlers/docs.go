package handlers

import (
	"encoding/json"
	"net/http"
)

type schema = map[string]interface{}

func ref(name string) schema {
	return schema{"$ref": "#/components/schemas/" + name}
}

func queryParam(name, description string, s schema) schema {
	return schema{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      s,
	}
}

func jsonContent(s schema) schema {
	return schema{"application/json": schema{"schema": s}}
}

func errorResponse(description string) schema {
	return schema{
		"description": description,
		"content":     jsonContent(ref("ErrorResponse")),
	}
}

// dataOperation describes GET /api/data; the legacy /data path shares it
func dataOperation(summary string, deprecated bool) schema {
	return schema{
		"get": schema{
			"summary": summary,
			"description": "Filter the rainfall dataset and summarize the matching records. " +
				"startDate and endDate apply only when both are given; all other parameters combine with AND.",
			"deprecated": deprecated,
			"parameters": []schema{
				queryParam("startDate", "Inclusive lower bound, YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS", schema{"type": "string", "format": "date-time"}),
				queryParam("endDate", "Inclusive upper bound, YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS", schema{"type": "string", "format": "date-time"}),
				queryParam("specificRainfall", "Keep only records with exactly this value (no tolerance)", schema{"type": "number"}),
				queryParam("minRainfall", "Inclusive lower bound on RG_A", schema{"type": "number"}),
				queryParam("maxRainfall", "Inclusive upper bound on RG_A", schema{"type": "number"}),
			},
			"responses": schema{
				"200": schema{
					"description": "Filtered records with statistics",
					"content":     jsonContent(ref("DataResponse")),
				},
				"400": errorResponse("A filter parameter is malformed; the parameter field names it"),
				"503": errorResponse("The record store cannot be read"),
				"500": errorResponse("Unexpected failure"),
			},
		},
	}
}

func nullableNumber() schema {
	return schema{"type": "number", "nullable": true}
}

// NewOpenAPIHandler serves the OpenAPI 3.0 document of the rainfall API
func NewOpenAPIHandler(serverURL string) http.HandlerFunc {
	doc := schema{
		"openapi": "3.0.0",
		"info": schema{
			"title":       "Rainfall Data API",
			"description": "Query a rain gauge time series by date and value, with descriptive statistics over the result",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": serverURL, "description": "Configured server"},
		},
		"paths": schema{
			"/api/data": dataOperation("Query rainfall records", false),
			"/data":     dataOperation("Query rainfall records (legacy path)", true),
			"/health": schema{
				"get": schema{
					"summary":     "Health check",
					"description": "Reports whether the record store can be read",
					"responses": schema{
						"200": schema{
							"description": "Healthy",
							"content":     jsonContent(ref("HealthResponse")),
						},
						"503": schema{
							"description": "Record store unavailable",
							"content":     jsonContent(ref("HealthResponse")),
						},
					},
				},
			},
			"/metrics": schema{
				"get": schema{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": schema{
						"200": schema{
							"description": "Prometheus metrics in text format",
							"content": schema{
								"text/plain": schema{"schema": schema{"type": "string"}},
							},
						},
					},
				},
			},
		},
		"components": schema{
			"schemas": schema{
				"RainfallRecord": schema{
					"type": "object",
					"properties": schema{
						"id":   schema{"type": "integer"},
						"time": schema{"type": "string", "example": "2023-01-01T00:00:00"},
						"RG_A": nullableNumber(),
					},
				},
				"Statistics": schema{
					"type": "object",
					"description": "Computed over finite, non-negative values and rounded to 4 decimal places. " +
						"standard_deviation is the sample deviation and is null for fewer than two values.",
					"properties": schema{
						"mean":               nullableNumber(),
						"median":             nullableNumber(),
						"standard_deviation": nullableNumber(),
						"range":              nullableNumber(),
						"highest":            nullableNumber(),
						"lowest":             nullableNumber(),
						"total_count":        schema{"type": "integer", "nullable": true},
					},
				},
				"DataResponse": schema{
					"type": "object",
					"properties": schema{
						"data":       schema{"type": "array", "items": ref("RainfallRecord")},
						"statistics": ref("Statistics"),
						"value_counts": schema{
							"type":                 "object",
							"description":          "Occurrences of each distinct value, keyed like \"1.0\"",
							"additionalProperties": schema{"type": "integer"},
						},
						"warnings": schema{"type": "array", "items": schema{"type": "string"}},
					},
				},
				"ErrorResponse": schema{
					"type": "object",
					"properties": schema{
						"error":     schema{"type": "string"},
						"message":   schema{"type": "string"},
						"code":      schema{"type": "integer"},
						"parameter": schema{"type": "string"},
					},
				},
				"HealthResponse": schema{
					"type": "object",
					"properties": schema{
						"status":    schema{"type": "string"},
						"timestamp": schema{"type": "string", "format": "date-time"},
						"error":     schema{"type": "string"},
					},
				},
			},
		},
	}

	body, err := json.Marshal(doc)
	if err != nil {
		panic("openapi document is not serializable: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}
