// Package export writes reports as XLSX workbooks.
package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/pipeline-reports/internal/model"
)

const (
	moneyFormat = "#,##0"
	areaFormat  = "#,##0.00"
)

// ItemsWorkbook builds a two-sheet workbook: one row per line item and one
// row per product.
func ItemsWorkbook(data model.ItemsReportData) (*xlsx.File, error) {
	f := xlsx.NewFile()

	items, err := f.AddSheet("Items")
	if err != nil {
		return nil, eris.Wrap(err, "export: add items sheet")
	}
	header(items, "Negocio", "ID negocio", "Cliente", "Producto", "Cantidad",
		"Ancho mm", "Alto mm", "m² por unidad", "m² totales", "Precio m²", "Subtotal sin IVA")
	for _, r := range data.Items {
		row := items.AddRow()
		str(row, r.DealName)
		str(row, r.DealID)
		str(row, r.Cliente)
		str(row, r.Item.Name)
		num(row, r.Item.Quantity, areaFormat)
		num(row, r.Item.AnchoMM, moneyFormat)
		num(row, r.Item.AltoMM, moneyFormat)
		num(row, r.Item.M2PorUnidad, areaFormat)
		num(row, r.Item.M2Totales, areaFormat)
		num(row, r.Item.PrecioM2, moneyFormat)
		num(row, r.Item.SubtotalSinIva, moneyFormat)
	}

	products, err := f.AddSheet("Productos")
	if err != nil {
		return nil, eris.Wrap(err, "export: add products sheet")
	}
	header(products, "Producto", "Líneas", "Cantidad", "m²", "Subtotal sin IVA")
	for _, p := range data.ByProduct {
		row := products.AddRow()
		str(row, p.Name)
		row.AddCell().SetInt(p.Items)
		num(row, p.Quantity, areaFormat)
		num(row, p.M2, areaFormat)
		num(row, p.Subtotal, moneyFormat)
	}
	total := products.AddRow()
	str(total, "Total")
	total.AddCell().SetInt(data.TotalItems)
	num(total, data.TotalQuantity, areaFormat)
	num(total, data.TotalM2, areaFormat)
	num(total, data.TotalSubtotal, moneyFormat)

	return f, nil
}

// PedidosWorkbook builds a workbook with the confirmed orders and their
// payment-terms breakdown.
func PedidosWorkbook(data model.PedidosData) (*xlsx.File, error) {
	f := xlsx.NewFile()

	orders, err := f.AddSheet("Pedidos")
	if err != nil {
		return nil, eris.Wrap(err, "export: add orders sheet")
	}
	header(orders, "ID", "Negocio", "Cliente", "Empresa", "Etapa", "Monto", "m²",
		"Precio m²", "Condiciones de pago", "Días")
	for _, d := range data.Deals {
		row := orders.AddRow()
		str(row, d.ID)
		str(row, d.Name)
		str(row, d.ClienteNombre)
		str(row, d.ClienteEmpresa)
		str(row, d.StageLabel)
		num(row, d.Amount, moneyFormat)
		num(row, d.M2Total, areaFormat)
		num(row, d.PrecioPromedioM2, moneyFormat)
		str(row, d.CondicionesPago)
		row.AddCell().SetInt(d.DaysSinceCreation)
	}

	terms, err := f.AddSheet("Condiciones")
	if err != nil {
		return nil, eris.Wrap(err, "export: add terms sheet")
	}
	header(terms, "Condiciones de pago", "Pedidos", "Monto")
	for _, b := range data.ByPaymentTerms {
		row := terms.AddRow()
		str(row, b.Terms)
		row.AddCell().SetInt(b.Deals)
		num(row, b.Amount, moneyFormat)
	}

	return f, nil
}

// Write serialises a workbook to w.
func Write(w io.Writer, f *xlsx.File) error {
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

// Save writes a workbook to path.
func Save(path string, f *xlsx.File) error {
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func header(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, t := range titles {
		cell := row.AddCell()
		cell.SetString(t)
		style := xlsx.NewStyle()
		style.Font.Bold = true
		style.ApplyFont = true
		cell.SetStyle(style)
	}
}

func str(row *xlsx.Row, v string) {
	row.AddCell().SetString(v)
}

func num(row *xlsx.Row, v float64, format string) {
	row.AddCell().SetFloatWithFormat(v, format)
}
