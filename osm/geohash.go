package osm

import gh "github.com/mmcloughlin/geohash"

// CellForCoordinate computes the geohash cell of the configured
// precision covering (lat, lon), clamping lat to MaxGeohashLat first to
// work around the geohash library's behavior at the pole (§4.7).
func CellForCoordinate(lat, lon float64, precision int) string {
	return gh.EncodeWithPrecision(ClampGeohashLat(lat), lon, uint(precision))
}

// CellForElement computes the geohash cell for a node element, decoding
// its fixed-point coordinates first.
func CellForElement(node *Element, scale int64, precision int) (string, error) {
	if node.Namespace != NSNode || node.Node == nil {
		return "", ProgrammerErrorf("CellForElement called on non-node element %s/%s", node.Namespace, node.ID)
	}
	lat := DecodeCoordinateFloat(node.Node.Lat, scale)
	lon := DecodeCoordinateFloat(node.Node.Lon, scale)
	return CellForCoordinate(lat, lon, precision), nil
}

// CellBounds returns the (north, south, east, west) rectangle a geohash
// cell covers.
func CellBounds(cell string) BBox {
	box := gh.BoundingBox(cell)
	return BBox{North: box.MaxLat, South: box.MinLat, East: box.MaxLng, West: box.MinLng}
}
