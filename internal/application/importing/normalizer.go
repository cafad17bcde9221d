package importing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
	"github.com/mohammadpnp/energy-crm/internal/textnorm"
)

const (
	FieldName             = "name"
	FieldSiret            = "siret"
	FieldLeadOrigin       = "lead_origin"
	FieldContact          = "contact"
	FieldFirstName        = "firstname"
	FieldLastName         = "lastname"
	FieldContactFirstName = "contact_firstname"
	FieldContactLastName  = "contact_lastname"
	FieldEmail            = "email"
	FieldPhone            = "phone"
	FieldMobile           = "mobile"
	FieldMeterCode        = "pce_pdl"
	FieldProvider         = "provider"
	FieldEnergyType       = "energy_type"
	FieldContractEnd      = "contract_end"
	FieldCommercial       = "commercial"
	FieldComment          = "comment"
)

var synonyms = map[string]string{
	"name":           FieldName,
	"nom":            FieldName,
	"raison_sociale": FieldName,
	"societe":        FieldName,
	"entreprise":     FieldName,
	"client":         FieldName,
	"nom_client":     FieldName,
	"nom_societe":    FieldName,
	"denomination":   FieldName,

	"siret":        FieldSiret,
	"siren":        FieldSiret,
	"n_siret":      FieldSiret,
	"numero_siret": FieldSiret,

	"origine":      FieldLeadOrigin,
	"origine_lead": FieldLeadOrigin,
	"provenance":   FieldLeadOrigin,
	"lead_origin":  FieldLeadOrigin,

	"contact":       FieldContact,
	"interlocuteur": FieldContact,
	"nom_complet":   FieldContact,

	"prenom":         FieldFirstName,
	"prenom_contact": FieldFirstName,
	"firstname":      FieldFirstName,
	"first_name":     FieldFirstName,
	"nom_contact":    FieldLastName,
	"nom_de_famille": FieldLastName,
	"lastname":       FieldLastName,
	"last_name":      FieldLastName,

	"email":         FieldEmail,
	"mail":          FieldEmail,
	"courriel":      FieldEmail,
	"adresse_email": FieldEmail,
	"adresse_mail":  FieldEmail,

	"phone":            FieldPhone,
	"telephone":        FieldPhone,
	"tel":              FieldPhone,
	"numero":           FieldPhone,
	"numero_telephone": FieldPhone,
	"mobile":           FieldMobile,
	"portable":         FieldMobile,

	"pce_pdl":            FieldMeterCode,
	"pdl":                FieldMeterCode,
	"pce":                FieldMeterCode,
	"pdl_pce":            FieldMeterCode,
	"pdlpce":             FieldMeterCode,
	"pcepdl":             FieldMeterCode,
	"point_de_livraison": FieldMeterCode,

	"provider":    FieldProvider,
	"fournisseur": FieldProvider,

	"energy_type":  FieldEnergyType,
	"energie":      FieldEnergyType,
	"type_energie": FieldEnergyType,

	"contract_end":       FieldContractEnd,
	"echeance":           FieldContractEnd,
	"date_echeance":      FieldContractEnd,
	"date_decheance":     FieldContractEnd,
	"date_chance_elec":   FieldContractEnd,
	"date_echeance_elec": FieldContractEnd,
	"fin_contrat":        FieldContractEnd,
	"date_fin_contrat":   FieldContractEnd,

	"commercial":       FieldCommercial,
	"email_commercial": FieldCommercial,

	"comment":      FieldComment,
	"commentaire":  FieldComment,
	"commentaires": FieldComment,
	"remarque":     FieldComment,
	"remarques":    FieldComment,
}

var dateLayouts = []string{"02/01/2006", "2006-01-02", "02-01-2006", "2/1/2006", "02/01/06"}

// CanonicalKey maps one header to its field key, before the row-level
// renaming rules are applied.
func CanonicalKey(header string) string {
	key := textnorm.Key(header)
	if field, ok := synonyms[key]; ok {
		return field
	}
	return key
}

// ResolveKeys applies CanonicalKey to every header then the row-level rules:
// the second "name" column is the contact last name, and bare
// firstname/lastname columns belong to the contact. Empty headers resolve to "".
func ResolveKeys(headers []string) []string {
	keys := make([]string, len(headers))
	names := 0
	for i, header := range headers {
		key := CanonicalKey(header)
		switch key {
		case FieldName:
			names++
			if names == 2 {
				key = FieldContactLastName
			}
		case FieldFirstName:
			key = FieldContactFirstName
		case FieldLastName:
			key = FieldContactLastName
		}
		keys[i] = key
	}
	return keys
}

// Normalizer turns raw rows into Fields. Analysis and processing share one
// instance so both read a file identically.
type Normalizer struct {
	log *zap.SugaredLogger
}

func NewNormalizer(log *zap.SugaredLogger) *Normalizer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Normalizer{log: log}
}

func (n *Normalizer) Normalize(cells []domain.Cell) Fields {
	headers := make([]string, len(cells))
	for i, cell := range cells {
		headers[i] = cell.Header
	}
	keys := ResolveKeys(headers)

	fields := make(Fields, len(cells))
	for i, cell := range cells {
		key := keys[i]
		if key == "" {
			continue
		}
		if existing, ok := fields[key]; ok && !isBlank(existing) {
			continue
		}
		fields[key] = normalizeValue(cell.Value)
	}

	if raw, ok := fields[FieldContractEnd]; ok && raw != nil {
		date, err := toDate(raw)
		if err != nil {
			n.log.Debugw("unreadable contract end date", "value", raw, "error", err)
		}
		fields[FieldContractEnd] = date
	}
	if siret, ok := fields[FieldSiret]; ok && siret != nil {
		fields[FieldSiret] = strings.Join(strings.Fields(stringValue(siret)), "")
	}

	return fields
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return strings.TrimSpace(x)
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case time.Time:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// toDate reads spreadsheet serials (days since 1899-12-30) and the usual
// French and ISO textual layouts. A nil result with an error means the value
// could not be read.
func toDate(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		d := truncateDay(x)
		return d, nil
	case float64:
		return serialToDate(x)
	case string:
		if x == "" {
			return nil, nil
		}
		if serial, err := strconv.ParseFloat(x, 64); err == nil {
			return serialToDate(serial)
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("unsupported date %q", x)
	}
	return nil, fmt.Errorf("unsupported date value %T", v)
}

func serialToDate(serial float64) (any, error) {
	if serial <= 0 {
		return nil, fmt.Errorf("invalid date serial %v", serial)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return nil, fmt.Errorf("convert date serial %v: %w", serial, err)
	}
	return truncateDay(t), nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
