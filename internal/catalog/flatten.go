package catalog

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/guanabara/catalog-sync/internal/erp"
)

// Lookups indexes the auxiliary vendor collections used to denormalize
// products. When a collection holds duplicate ids the first row wins.
type Lookups struct {
	prices   map[int64]erp.Price
	sections map[int64]erp.Lookup
	brands   map[int64]erp.Lookup
	genres   map[int64]erp.Lookup
	groups   map[string]erp.Group
}

// NewLookups indexes the given collections. Any argument may be empty.
func NewLookups(prices []erp.Price, sections, brands, genres []erp.Lookup, groups []erp.Group) *Lookups {
	l := &Lookups{
		prices:   make(map[int64]erp.Price, len(prices)),
		sections: indexLookups(sections),
		brands:   indexLookups(brands),
		genres:   indexLookups(genres),
		groups:   make(map[string]erp.Group, len(groups)*2),
	}
	for _, p := range prices {
		if _, ok := l.prices[p.ProdutoID]; !ok {
			l.prices[p.ProdutoID] = p
		}
	}
	for _, g := range groups {
		if g.SecaoID != 0 {
			key := groupKey(g.SecaoID, g.ID)
			if _, ok := l.groups[key]; !ok {
				l.groups[key] = g
			}
		}
		plain := strconv.FormatInt(g.ID, 10)
		if _, ok := l.groups[plain]; !ok {
			l.groups[plain] = g
		}
	}
	return l
}

func indexLookups(rows []erp.Lookup) map[int64]erp.Lookup {
	out := make(map[int64]erp.Lookup, len(rows))
	for _, r := range rows {
		if _, ok := out[r.ID]; !ok {
			out[r.ID] = r
		}
	}
	return out
}

func groupKey(sectionID, groupID int64) string {
	return strconv.FormatInt(sectionID, 10) + "-" + strconv.FormatInt(groupID, 10)
}

func (l *Lookups) group(sectionID, groupID int64) (erp.Group, bool) {
	if g, ok := l.groups[groupKey(sectionID, groupID)]; ok {
		return g, true
	}
	g, ok := l.groups[strconv.FormatInt(groupID, 10)]
	return g, ok
}

// Flatten is the single-call form of (*Lookups).Flatten without groups.
func Flatten(p erp.Product, prices []erp.Price, sections, brands, genres []erp.Lookup) Record {
	return NewLookups(prices, sections, brands, genres, nil).Flatten(p)
}

// FlattenAll flattens products in input order.
func (l *Lookups) FlattenAll(products []erp.Product) []Record {
	out := make([]Record, 0, len(products))
	for _, p := range products {
		out = append(out, l.Flatten(p))
	}
	return out
}

// Flatten builds the catalog record for p. It is a pure function of p and
// the indexed lookups.
func (l *Lookups) Flatten(p erp.Product) Record {
	section, hasSection := l.sections[p.SecaoID]
	brand, hasBrand := l.brands[p.MarcaID]
	genre := l.genres[p.GeneroID]
	group, _ := l.group(p.SecaoID, p.GrupoID)
	price := l.prices[p.ID]

	category := DefaultCategory
	if hasSection && strings.TrimSpace(section.Descricao) != "" {
		category = strings.TrimSpace(section.Descricao)
	}
	brandName := DefaultBrand
	if hasBrand && strings.TrimSpace(brand.Descricao) != "" {
		brandName = strings.TrimSpace(brand.Descricao)
	}
	genreName := strings.TrimSpace(genre.Descricao)
	groupName := strings.TrimSpace(group.Descricao)

	rec := Record{
		ID:          IDFromInt(p.ID),
		Name:        firstNonEmpty(p.Descricao, DefaultName),
		Image:       firstNonEmpty(p.Imagem, PlaceholderImage),
		Category:    category,
		Description: firstNonEmpty(p.DescricaoReduzida, p.Descricao, DefaultDescription),
		Rating:      DefaultRating,
		Reviews:     DefaultReviews,
		Brand:       brandName,
		Genre:       genreName,
		Group:       groupName,
		Unit:        firstNonEmpty(p.UnidadeDeVenda.String(), DefaultUnit),
		Tags:        buildTags(category, brandName, genreName, groupName),
	}
	applyPrice(&rec, price)
	rec.Stock = stockOf(p)
	rec.InStock = rec.Stock > 0

	rec.VarejoFacil = VendorData{
		CodigoInterno:          p.CodigoInterno.String(),
		IDExterno:              p.IDExterno.String(),
		SecaoID:                p.SecaoID,
		SecaoNome:              strings.TrimSpace(section.Descricao),
		GrupoID:                p.GrupoID,
		GrupoNome:              groupName,
		SubgrupoID:             p.SubgrupoID,
		MarcaID:                p.MarcaID,
		MarcaNome:              strings.TrimSpace(brand.Descricao),
		GeneroID:               p.GeneroID,
		GeneroNome:             genreName,
		UnidadeDeVenda:         p.UnidadeDeVenda.String(),
		UnidadeDeCompra:        p.UnidadeDeCompra.String(),
		UnidadeDeTransferencia: p.UnidadeDeTransferencia.String(),
		PesoBruto:              p.PesoBruto.Float(),
		PesoLiquido:            p.PesoLiquido.Float(),
		Altura:                 p.Altura.String(),
		Largura:                p.Largura.String(),
		Comprimento:            p.Comprimento.String(),
		AtivoNoEcommerce:       p.AtivoNoEcommerce,
		DataInclusao:           p.DataInclusao,
		DataAlteracao:          p.DataAlteracao,
	}
	return rec
}

func applyPrice(rec *Record, p erp.Price) {
	venda1, oferta1 := p.PrecoVenda1.Float(), p.PrecoOferta1.Float()
	venda2, oferta2 := p.PrecoVenda2.Float(), p.PrecoOferta2.Float()
	venda3, oferta3 := p.PrecoVenda3.Float(), p.PrecoOferta3.Float()

	rec.OriginalPrice = venda1
	rec.Price = venda1
	if oferta1 > 0 {
		rec.Price = oferta1
	}
	rec.WholesalePrice = venda2
	if oferta2 > 0 {
		rec.WholesalePrice = oferta2
	}
	rec.IsOnSale = oferta1 > 0
	rec.HasOffers = oferta1 > 0 || oferta2 > 0 || oferta3 > 0
	if rec.IsOnSale && venda1 > 0 && oferta1 < venda1 {
		rec.DiscountPercent = int(math.Round((venda1 - oferta1) / venda1 * 100))
	}
	rec.Prices = PriceTiers{
		Price1:            venda1,
		OfferPrice1:       oferta1,
		Price2:            venda2,
		OfferPrice2:       oferta2,
		Price3:            venda3,
		OfferPrice3:       oferta3,
		MinQuantityPrice2: p.QuantidadeMinimaPreco2.Float(),
		MinQuantityPrice3: p.QuantidadeMinimaPreco3.Float(),
	}
}

func stockOf(p erp.Product) float64 {
	if len(p.EstoqueDoProduto) > 0 {
		if v := p.EstoqueDoProduto[0].EstoqueMaximo.Float(); v > 0 {
			return v
		}
	}
	return DefaultStock
}

// buildTags lowercases the descriptive names with pt-BR rules and drops
// empties, duplicates and the default brand.
func buildTags(category, brand, genre, group string) []string {
	lower := cases.Lower(language.BrazilianPortuguese)
	defaultBrand := lower.String(DefaultBrand)
	tags := make([]string, 0, 5)
	seen := make(map[string]struct{}, 5)
	for _, raw := range []string{category, brand, genre, group, SourceTag} {
		tag := strings.TrimSpace(lower.String(raw))
		if tag == "" || tag == defaultBrand {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
