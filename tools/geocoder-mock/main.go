package main

import (
	"encoding/json"
	"log"
	"net/http"
)

// A stand-in for the Nominatim reverse geocoding endpoint, for local runs
// without internet access.
type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

func reverseHandler(w http.ResponseWriter, r *http.Request) {
	lat := r.URL.Query().Get("lat")
	lon := r.URL.Query().Get("lon")
	if lat == "" || lon == "" {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	log.Printf("Reverse geocode request for lat=%s lon=%s", lat, lon)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reverseResponse{
		DisplayName: "Jl. Mock No. 1, Test District, Test City",
	})
}

func main() {
	http.HandleFunc("/reverse", reverseHandler)
	log.Println("Geocoder mock server starting on port 8082...")
	log.Fatal(http.ListenAndServe(":8082", nil))
}
