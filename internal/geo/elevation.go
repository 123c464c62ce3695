package geo

import (
	"fmt"
	"math"

	"github.com/lukeroth/gdal"

	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// Elevation answers terrain-elevation queries; implemented by GeoFile and
// faked in tests.
type Elevation interface {
	// ElevationAt returns the terrain elevation [m] at the given point
	// (degrees), or false when the point falls outside the raster.
	ElevationAt(lat, lon float64) (int, bool)
}

// wgs84WKT is the source reference for the geographic→raster transform.
const wgs84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG",7030]],TOWGS84[0,0,0,0,0,0,0],AUTHORITY["EPSG",6326]],PRIMEM["Greenwich",0,AUTHORITY["EPSG",8901]],UNIT["DMSH",0.0174532925199433,AUTHORITY["EPSG",9108]],AXIS["Lat",NORTH],AXIS["Long",EAST],AUTHORITY["EPSG",4326]]`

// GeoFile reads terrain elevations out of a geotiff raster. Opened once at
// startup and shared by reference; the GDAL handles are guarded against
// concurrent use by each worker owning its own GeoFile.
type GeoFile struct {
	dataset      gdal.Dataset
	xSize, ySize int
	geotransform [6]float64
	transform    gdal.CoordinateTransform
	logger       *logger.Logger
}

// OpenGeoFile opens the terrain raster and prepares the WGS84 transform.
func OpenGeoFile(path string, log *logger.Logger) (*GeoFile, error) {
	log.Info("Reading geotiff", logger.String("path", path))

	dataset, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to open geotiff %s: %w", path, err)
	}

	src := gdal.CreateSpatialReference(wgs84WKT)
	dst := gdal.CreateSpatialReference(dataset.Projection())
	ct := gdal.CreateCoordinateTransform(src, dst)

	return &GeoFile{
		dataset:      dataset,
		xSize:        dataset.RasterXSize(),
		ySize:        dataset.RasterYSize(),
		geotransform: dataset.GeoTransform(),
		transform:    ct,
		logger:       log.Named("geofile"),
	}, nil
}

// Close releases the raster handle.
func (g *GeoFile) Close() {
	g.dataset.Close()
}

// ElevationAt implements Elevation. Readings below the Mariana Trench or
// above the edge of space are decode artifacts and clamp to 0.
func (g *GeoFile) ElevationAt(lat, lon float64) (int, bool) {
	xs := []float64{lat}
	ys := []float64{lon}
	zs := []float64{0}
	g.transform.Transform(1, xs, ys, zs)

	x := int(math.Round((xs[0] - g.geotransform[0]) / g.geotransform[1]))
	y := int(math.Round((ys[0] - g.geotransform[3]) / g.geotransform[5]))

	if x < 0 || x >= g.xSize || y < 0 || y >= g.ySize {
		return 0, false
	}

	buf := make([]float64, 1)
	if err := g.dataset.RasterBand(1).IO(gdal.Read, x, y, 1, 1, buf, 1, 1, 0, 0); err != nil {
		g.logger.Error("Failed to read raster sample",
			logger.Float64("lat", lat),
			logger.Float64("lon", lon),
			logger.Error(err))
		return 0, false
	}

	elevation := int(math.Round(buf[0]))
	if elevation < -10994 || elevation > 100*1000 {
		elevation = 0
	}
	return elevation, true
}
