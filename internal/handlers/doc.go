// Package handlers implements the HTTP API layer for the asyncqueue agent.
//
// Handlers delegate to services.TaskService and only deal with request
// binding, error mapping and conversion to the api/v1 wire types.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                     HTTP Request (Gin)                          │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Handler (this package)                     │
//	│  - Request binding                                              │
//	│  - Error mapping to HTTP status codes                           │
//	│  - Model-to-API conversion                                      │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      TaskService                                │
//	└─────────────────────────────────────────────────────────────────┘
//
// Routes are mounted with:
//
//	h := handlers.New(taskSrv)
//	srv, err := server.NewServer(cfg, h.RegisterRoutes)
//
// # API Endpoints
//
//	┌────────┬──────────────┬───────────────────────────────────────────┐
//	│ Method │ Endpoint     │ Description                               │
//	├────────┼──────────────┼───────────────────────────────────────────┤
//	│ POST   │ /tasks       │ Submit a task and wait for its outcome    │
//	│ GET    │ /tasks       │ List stored executions                    │
//	│ GET    │ /tasks/{key} │ Get the stored execution for a key        │
//	│ DELETE │ /tasks/{key} │ Forget a key so it runs again             │
//	│ GET    │ /queue       │ Queue counters                            │
//	└────────┴──────────────┴───────────────────────────────────────────┘
//
// # POST /tasks
//
// Request:
//
//	{ "key": "report-42", "payload": "..." }
//
// Submissions with the same key share a single execution. Once a key has
// completed, later submissions get the same outcome without running again.
//
// Errors:
//   - 400 Bad Request: missing key or malformed body
//   - 503 Service Unavailable: the queue is stopping
//   - 500 Internal Server Error: the processor failed (message in body)
//
// # GET /tasks
//
// Query Parameters:
//
//	┌──────────┬──────┬────────────────────────────────────────────────┐
//	│ Param    │ Type │ Description                                    │
//	├──────────┼──────┼────────────────────────────────────────────────┤
//	│ failed   │ bool │ Only failed (true) or succeeded (false) runs   │
//	│ page     │ int  │ Page number (default: 1)                       │
//	│ pageSize │ int  │ Items per page (default: 20, max: 100)         │
//	└──────────┴──────┴────────────────────────────────────────────────┘
//
// Response:
//
//	{
//	    "page": 1,
//	    "pageCount": 1,
//	    "total": 2,
//	    "tasks": [
//	        { "id": "...", "key": "a", "status": "succeeded", "digest": "...", "size": 5 },
//	        { "id": "...", "key": "b", "status": "failed", "error": "..." }
//	    ]
//	}
package handlers
