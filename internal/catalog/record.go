// Package catalog turns vendor records into storefront catalog records and
// persists them.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PlaceholderImage is assigned to products that carry no vendor image.
const PlaceholderImage = "https://images.unsplash.com/photo-1619983081563-430f8b5a893c?auto=format&fit=crop&w=400&q=80"

// Defaults applied by the flattener when vendor data is missing.
const (
	DefaultCategory    = "GERAL"
	DefaultBrand       = "Sem marca"
	DefaultName        = "Produto sem nome"
	DefaultDescription = "Descrição não disponível"
	DefaultUnit        = "un"
	DefaultStock       = 10
	DefaultRating      = 4.5
	DefaultReviews     = 25
	AllCategories      = "Todos"
	SourceTag          = "varejo-facil"
)

// ID is a catalog record identifier. Older catalog files stored numeric ids,
// so both JSON strings and numbers are accepted.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("catalog: invalid id %s: %w", string(data), err)
		}
		*id = ID(n.String())
	}
	return nil
}

// IDFromInt formats a vendor numeric id.
func IDFromInt(v int64) ID { return ID(strconv.FormatInt(v, 10)) }

// PriceTiers carries the vendor's three price tiers.
type PriceTiers struct {
	Price1            float64 `json:"price1"`
	OfferPrice1       float64 `json:"offerPrice1"`
	Price2            float64 `json:"price2"`
	OfferPrice2       float64 `json:"offerPrice2"`
	Price3            float64 `json:"price3"`
	OfferPrice3       float64 `json:"offerPrice3"`
	MinQuantityPrice2 float64 `json:"minQuantityPrice2"`
	MinQuantityPrice3 float64 `json:"minQuantityPrice3"`
}

// VendorData keeps the vendor-side identifiers and attributes of a record.
type VendorData struct {
	CodigoInterno          string  `json:"codigoInterno"`
	IDExterno              string  `json:"idExterno"`
	SecaoID                int64   `json:"secaoId"`
	SecaoNome              string  `json:"secaoNome"`
	GrupoID                int64   `json:"grupoId"`
	GrupoNome              string  `json:"grupoNome"`
	SubgrupoID             int64   `json:"subgrupoId"`
	MarcaID                int64   `json:"marcaId"`
	MarcaNome              string  `json:"marcaNome"`
	GeneroID               int64   `json:"generoId"`
	GeneroNome             string  `json:"generoNome"`
	UnidadeDeVenda         string  `json:"unidadeDeVenda"`
	UnidadeDeCompra        string  `json:"unidadeDeCompra"`
	UnidadeDeTransferencia string  `json:"unidadeDeTransferencia"`
	PesoBruto              float64 `json:"pesoBruto"`
	PesoLiquido            float64 `json:"pesoLiquido"`
	Altura                 string  `json:"altura"`
	Largura                string  `json:"largura"`
	Comprimento            string  `json:"comprimento"`
	AtivoNoEcommerce       *bool   `json:"ativoNoEcommerce,omitempty"`
	DataInclusao           string  `json:"dataInclusao"`
	DataAlteracao          string  `json:"dataAlteracao"`
}

// Record is one denormalized catalog entry as served to the storefront.
type Record struct {
	ID              ID         `json:"id"`
	Name            string     `json:"name"`
	Price           float64    `json:"price"`
	OriginalPrice   float64    `json:"originalPrice"`
	WholesalePrice  float64    `json:"wholesalePrice"`
	HasOffers       bool       `json:"hasOffers"`
	IsOnSale        bool       `json:"isOnSale"`
	DiscountPercent int        `json:"discountPercent"`
	Image           string     `json:"image"`
	Category        string     `json:"category"`
	Description     string     `json:"description"`
	Stock           float64    `json:"stock"`
	InStock         bool       `json:"inStock"`
	Rating          float64    `json:"rating"`
	Reviews         int        `json:"reviews"`
	Brand           string     `json:"brand"`
	Genre           string     `json:"genre"`
	Group           string     `json:"group"`
	Unit            string     `json:"unit"`
	Tags            []string   `json:"tags"`
	Prices          PriceTiers `json:"prices"`
	VarejoFacil     VendorData `json:"varejoFacilData"`
}
