// Package erp talks to the Varejo Fácil REST API.
package erp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Collection names a paginated vendor collection under /v1/produto.
type Collection string

const (
	CollectionProducts Collection = "produtos"
	CollectionPrices   Collection = "precos"
	CollectionSections Collection = "secoes"
	CollectionBrands   Collection = "marcas"
	CollectionGenres   Collection = "generos"
)

// Path returns the endpoint path relative to the API base URL.
func (c Collection) Path() string {
	return "/v1/produto/" + string(c)
}

func groupsPath(sectionID int64) string {
	return fmt.Sprintf("/v1/produto/secoes/%d/grupos", sectionID)
}

// Amount decodes vendor money and quantity fields that arrive either as JSON
// numbers or as numeric strings.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = 0
		return nil
	}
	raw = strings.TrimSpace(strings.Trim(raw, `"`))
	if raw == "" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return fmt.Errorf("erp: invalid amount %s: %w", string(data), err)
	}
	*a = Amount(v)
	return nil
}

// Float returns the amount as float64.
func (a Amount) Float() float64 { return float64(a) }

// Text decodes free-form vendor fields that are documented as strings but are
// sometimes emitted as numbers.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

// String returns the trimmed text value.
func (t Text) String() string { return strings.TrimSpace(string(t)) }

// StockLevel is one entry of a product's per-store stock configuration.
type StockLevel struct {
	LojaID        int64  `json:"lojaId"`
	EstoqueMinimo Amount `json:"estoqueMinimo"`
	EstoqueMaximo Amount `json:"estoqueMaximo"`
}

// Product is a raw product record as returned by /v1/produto/produtos.
type Product struct {
	ID                     int64        `json:"id"`
	IDExterno              Text         `json:"idExterno"`
	CodigoInterno          Text         `json:"codigoInterno"`
	Descricao              string       `json:"descricao"`
	DescricaoReduzida      string       `json:"descricaoReduzida"`
	SecaoID                int64        `json:"secaoId"`
	GrupoID                int64        `json:"grupoId"`
	SubgrupoID             int64        `json:"subgrupoId"`
	MarcaID                int64        `json:"marcaId"`
	GeneroID               int64        `json:"generoId"`
	Imagem                 string       `json:"imagem"`
	UnidadeDeVenda         Text         `json:"unidadeDeVenda"`
	UnidadeDeCompra        Text         `json:"unidadeDeCompra"`
	UnidadeDeTransferencia Text         `json:"unidadeDeTransferencia"`
	PesoBruto              Amount       `json:"pesoBruto"`
	PesoLiquido            Amount       `json:"pesoLiquido"`
	Altura                 Text         `json:"altura"`
	Largura                Text         `json:"largura"`
	Comprimento            Text         `json:"comprimento"`
	AtivoNoEcommerce       *bool        `json:"ativoNoEcommerce"`
	DataInclusao           string       `json:"dataInclusao"`
	DataAlteracao          string       `json:"dataAlteracao"`
	EstoqueDoProduto       []StockLevel `json:"estoqueDoProduto"`
}

// Price is a raw price row as returned by /v1/produto/precos.
type Price struct {
	ID                     int64  `json:"id"`
	IDExterno              Text   `json:"idExterno"`
	LojaID                 int64  `json:"lojaId"`
	ProdutoID              int64  `json:"produtoId"`
	PrecoVenda1            Amount `json:"precoVenda1"`
	PrecoOferta1           Amount `json:"precoOferta1"`
	PrecoVenda2            Amount `json:"precoVenda2"`
	PrecoOferta2           Amount `json:"precoOferta2"`
	QuantidadeMinimaPreco2 Amount `json:"quantidadeMinimaPreco2"`
	PrecoVenda3            Amount `json:"precoVenda3"`
	PrecoOferta3           Amount `json:"precoOferta3"`
	QuantidadeMinimaPreco3 Amount `json:"quantidadeMinimaPreco3"`
	DescontoMaximo         Amount `json:"descontoMaximo"`
	PermiteDesconto        *bool  `json:"permiteDesconto"`
}

// Lookup is a section, brand or genre row.
type Lookup struct {
	ID        int64  `json:"id"`
	IDExterno Text   `json:"idExterno"`
	Descricao string `json:"descricao"`
}

// Group is a product group nested under a section.
type Group struct {
	ID        int64  `json:"id"`
	IDExterno Text   `json:"idExterno"`
	Descricao string `json:"descricao"`
	SecaoID   int64  `json:"secaoId"`
}

type envelope struct {
	Start int               `json:"start"`
	Count int               `json:"count"`
	Total int               `json:"total"`
	Items []json.RawMessage `json:"items"`
}
