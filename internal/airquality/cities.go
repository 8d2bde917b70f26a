package airquality

// City is a named coordinate used to drive per-point provider queries.
type City struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// MajorCities are the metros queried by per-coordinate providers.
var MajorCities = []City{
	{"Delhi", 28.6139, 77.2090},
	{"Mumbai", 19.0760, 72.8777},
	{"Bangalore", 12.9716, 77.5946},
	{"Chennai", 13.0827, 80.2707},
	{"Kolkata", 22.5726, 88.3639},
	{"Hyderabad", 17.3850, 78.4867},
	{"Pune", 18.5204, 73.8567},
	{"Ahmedabad", 23.0225, 72.5714},
}
