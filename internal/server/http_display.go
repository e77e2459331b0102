package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET    /health                       - Health check")
	fmt.Println("  GET    /stats                        - Server statistics")
	fmt.Println("  GET    /jobs                         - List jobs")
	fmt.Println("  PUT    /jobs/{jobID}                 - Define a job and its rubric")
	fmt.Println("  GET    /jobs/{jobID}                 - Show a job")
	fmt.Println("  POST   /jobs/{jobID}/candidates      - Submit candidates")
	fmt.Println("  POST   /jobs/{jobID}/runs            - Score candidates (async with ?async=true)")
	fmt.Println("  GET    /jobs/{jobID}/shortlist       - Ranked candidates")
	fmt.Println("  GET    /jobs/{jobID}/analytics       - Score summary")
	fmt.Println("  POST   /jobs/{jobID}/notifications   - Decision messages for the shortlist")
	fmt.Println("  GET    /runs                         - Active runs")
	fmt.Println("  GET    /runs/{runID}                 - Run report")
	fmt.Println("  DELETE /runs/{runID}                 - Cancel a run")
	fmt.Println("  POST   /notifications/compose        - Render one notification")
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo() {
	if n := s.apiKeys.len(); n > 0 {
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", n)
		fmt.Println("Include 'X-API-Key: <your-key>' header in requests to all endpoints except /health and /stats")
	} else {
		fmt.Println("API authentication: DISABLED (no API keys configured)")
		fmt.Println("WARNING: API endpoints are publicly accessible!")
	}
	if s.VaultWatcher != nil {
		fmt.Println("API keys are refreshed from Vault")
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Println("Request size limit: DISABLED")
		fmt.Println("WARNING: No request size limits configured!")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Println("  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Println("  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Println("Rate limiting: DISABLED")
		fmt.Println("WARNING: No rate limiting configured!")
	}
}
