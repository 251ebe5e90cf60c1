package geomag

// Two-argument accessors evaluate at the model's reference year and sea
// level; the *At forms take a decimal year and altitude in km.

// Declination returns the angle from true north to magnetic north, degrees,
// east positive.
func (g *Model) Declination(lat, lon float64) float64 {
	return g.Field(lat, lon).Declination
}

func (g *Model) DeclinationAt(lat, lon, year, altKm float64) float64 {
	return g.FieldAt(lat, lon, year, altKm).Declination
}

// Inclination returns the dip angle below the horizontal, degrees, down
// positive.
func (g *Model) Inclination(lat, lon float64) float64 {
	return g.Field(lat, lon).Inclination
}

func (g *Model) InclinationAt(lat, lon, year, altKm float64) float64 {
	return g.FieldAt(lat, lon, year, altKm).Inclination
}

// TotalIntensity returns the field magnitude in nT.
func (g *Model) TotalIntensity(lat, lon float64) float64 {
	return g.Field(lat, lon).Total
}

func (g *Model) TotalIntensityAt(lat, lon, year, altKm float64) float64 {
	return g.FieldAt(lat, lon, year, altKm).Total
}

func (g *Model) HorizontalIntensity(lat, lon float64) float64 {
	return g.Field(lat, lon).Horizontal
}

func (g *Model) HorizontalIntensityAt(lat, lon, year, altKm float64) float64 {
	return g.FieldAt(lat, lon, year, altKm).Horizontal
}

// VerticalIntensity is positive when the field points down.
func (g *Model) VerticalIntensity(lat, lon float64) float64 {
	return g.Field(lat, lon).Vertical
}

func (g *Model) VerticalIntensityAt(lat, lon, year, altKm float64) float64 {
	return g.FieldAt(lat, lon, year, altKm).Vertical
}

func (g *Model) NorthIntensity(lat, lon float64) float64 {
	return g.Field(lat, lon).North
}

func (g *Model) NorthIntensityAt(lat, lon, year, altKm float64) float64 {
	return g.FieldAt(lat, lon, year, altKm).North
}

func (g *Model) EastIntensity(lat, lon float64) float64 {
	return g.Field(lat, lon).East
}

func (g *Model) EastIntensityAt(lat, lon, year, altKm float64) float64 {
	return g.FieldAt(lat, lon, year, altKm).East
}
