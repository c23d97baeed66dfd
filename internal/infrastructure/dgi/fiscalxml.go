package dgi

import (
	"fmt"

	"github.com/beevik/etree"
)

// CUFEFromFiscalXML extrae el CUFE (<dId>) del XML fiscal devuelto por el PAC.
// Se usa como verificación cruzada: el CUFE del JSON de respuesta debe coincidir
// con el del XML antes de persistir los artefactos de autorización.
func CUFEFromFiscalXML(fiscalXML string) (string, error) {
	if fiscalXML == "" {
		return "", fmt.Errorf("xml fiscal vacío")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(fiscalXML); err != nil {
		return "", fmt.Errorf("parsear xml fiscal: %w", err)
	}
	el := doc.FindElement("//dId")
	if el == nil {
		return "", fmt.Errorf("xml fiscal sin elemento dId")
	}
	return el.Text(), nil
}

// VerifyCUFE comprueba que el CUFE reportado por el PAC coincide con el del XML
// fiscal. Con XML ausente no hay nada que verificar (algunos PAC lo entregan
// después, por consulta).
func VerifyCUFE(cufe, fiscalXML string) error {
	if fiscalXML == "" {
		return nil
	}
	fromXML, err := CUFEFromFiscalXML(fiscalXML)
	if err != nil {
		return err
	}
	if fromXML != cufe {
		return fmt.Errorf("cufe del XML (%s) no coincide con el reportado (%s)", fromXML, cufe)
	}
	return nil
}
