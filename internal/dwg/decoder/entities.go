package decoder

import (
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
)

// Lines decodes every LINE. R13/R14 files share one entity decoder across
// records and are decoded sequentially.
func (d *Decoder) Lines() ([]entities.Line, error) {
	return decodeAll(d, "LINE", is(objects.TypeLine), d.strategy.CompactBodies, plain((*entities.Decoder).Line))
}

// Arcs decodes every ARC
func (d *Decoder) Arcs() ([]entities.Arc, error) {
	return decodeAll(d, "ARC", is(objects.TypeArc), true, plain((*entities.Decoder).Arc))
}

// Circles decodes every CIRCLE
func (d *Decoder) Circles() ([]entities.Circle, error) {
	return decodeAll(d, "CIRCLE", is(objects.TypeCircle), true, plain((*entities.Decoder).Circle))
}

// Points decodes every POINT
func (d *Decoder) Points() ([]entities.Point, error) {
	return decodeAll(d, "POINT", is(objects.TypePoint), true, plain((*entities.Decoder).Point))
}

// Ellipses decodes every ELLIPSE
func (d *Decoder) Ellipses() ([]entities.Ellipse, error) {
	return decodeAll(d, "ELLIPSE", is(objects.TypeEllipse), true, plain((*entities.Decoder).Ellipse))
}

// Rays decodes every RAY
func (d *Decoder) Rays() ([]entities.Ray, error) {
	return decodeAll(d, "RAY", is(objects.TypeRay), true, plain((*entities.Decoder).Ray))
}

// XLines decodes every XLINE
func (d *Decoder) XLines() ([]entities.Ray, error) {
	return decodeAll(d, "XLINE", is(objects.TypeXLine), true, plain((*entities.Decoder).Ray))
}

// Texts decodes every TEXT
func (d *Decoder) Texts() ([]entities.Text, error) {
	return decodeAll(d, "TEXT", is(objects.TypeText), true, plain((*entities.Decoder).Text))
}

// MTexts decodes every MTEXT
func (d *Decoder) MTexts() ([]entities.MText, error) {
	return decodeAll(d, "MTEXT", is(objects.TypeMText), true, plain((*entities.Decoder).MText))
}

// LwPolylines decodes every LWPOLYLINE
func (d *Decoder) LwPolylines() ([]entities.LwPolyline, error) {
	return decodeAll(d, "LWPOLYLINE", is(objects.TypeLwPolyline), true, plain((*entities.Decoder).LwPolyline))
}

// Solids decodes the handle side of every 3DSOLID, REGION and BODY
func (d *Decoder) Solids() ([]entities.Acis, error) {
	return decodeAll(d, "ACIS", is(objects.Type3DSolid, objects.TypeRegion, objects.TypeBody), true,
		plain((*entities.Decoder).Acis))
}

// LayerColors decodes the colour of every LAYER
func (d *Decoder) LayerColors() ([]entities.Layer, error) {
	return decodeAll(d, "LAYER", is(objects.TypeLayer), true, plain((*entities.Decoder).Layer))
}

// BlockRecords decodes every BLOCK and ENDBLK as stored, without name
// resolution
func (d *Decoder) BlockRecords() ([]entities.Block, error) {
	return decodeAll(d, "BLOCK", is(objects.TypeBlock, objects.TypeEndblk), true, plain((*entities.Decoder).Block))
}
