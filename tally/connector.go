package tally

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ocr_backend/utils"
)

// EntityKind names a Tally master collection.
type EntityKind string

const (
	KindCompany   EntityKind = "Company"
	KindLedger    EntityKind = "Ledger"
	KindStockItem EntityKind = "StockItem"
)

// Ledger groups Tally files customers and vendors under by convention.
const (
	GroupSundryDebtors   = "Sundry Debtors"
	GroupSundryCreditors = "Sundry Creditors"
)

// Entity is one master record pulled from Tally. Alias is the optional
// short name users type into Tally; IsActive mirrors Tally's Yes/No flag.
type Entity struct {
	Name     string
	Alias    string
	Parent   string
	IsActive bool
}

// Label is the string vocabularies match against: the alias when one is
// set, otherwise the full name.
func (e Entity) Label() string {
	if e.Alias != "" {
		return e.Alias
	}
	return e.Name
}

// Connector talks to a running Tally instance over its XML HTTP gateway.
type Connector struct {
	baseURL string
	client  *http.Client
}

// NewConnector resolves the gateway address from the environment. A tunnel
// key takes priority over host/port so hosted customers reach their own
// on-premise Tally.
func NewConnector() *Connector {
	baseURL := ""
	if tunnelKey := os.Getenv("TALLY_TUNNEL_KEY"); tunnelKey != "" {
		baseURL = fmt.Sprintf("http://%s.holanitunnel.net", tunnelKey)
	} else {
		host := os.Getenv("TALLY_HOST")
		if host == "" {
			host = "localhost"
		}
		port := os.Getenv("TALLY_PORT")
		if port == "" {
			port = "9000"
		}
		baseURL = fmt.Sprintf("http://%s:%s", host, port)
	}

	return &Connector{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// ListEntities exports one master collection, optionally filtered to the
// children of a group (e.g. ledgers under "Sundry Debtors").
func (c *Connector) ListEntities(ctx context.Context, kind EntityKind, childOf string) ([]Entity, error) {
	envelope, err := BuildExportEnvelope(kind, childOf)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(envelope))
	if err != nil {
		return nil, utils.NewExternalServiceError("tally", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, utils.NewExternalServiceError("tally", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, utils.NewExternalServiceError("tally", fmt.Errorf("gateway returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.NewExternalServiceError("tally", err)
	}
	return ParseExportResponse(body, kind)
}

type exportEnvelope struct {
	XMLName xml.Name `xml:"ENVELOPE"`
	Header  exportHeader
	Body    exportBody
}

type exportHeader struct {
	XMLName      xml.Name `xml:"HEADER"`
	Version      int      `xml:"VERSION"`
	TallyRequest string   `xml:"TALLYREQUEST"`
	Type         string   `xml:"TYPE"`
	ID           string   `xml:"ID"`
}

type exportBody struct {
	XMLName xml.Name `xml:"BODY"`
	Desc    exportDesc
}

type exportDesc struct {
	XMLName xml.Name `xml:"DESC"`
	Vars    staticVariables
	TDL     tdlBlock
}

type staticVariables struct {
	XMLName      xml.Name `xml:"STATICVARIABLES"`
	ExportFormat string   `xml:"SVEXPORTFORMAT"`
}

type tdlBlock struct {
	XMLName xml.Name `xml:"TDL"`
	Message tdlMessage
}

type tdlMessage struct {
	XMLName    xml.Name `xml:"TDLMESSAGE"`
	Collection tdlCollection
}

type tdlCollection struct {
	XMLName       xml.Name `xml:"COLLECTION"`
	Name          string   `xml:"NAME,attr"`
	IsModify      string   `xml:"ISMODIFY,attr"`
	Type          string   `xml:"TYPE"`
	ChildOf       string   `xml:"CHILDOF,omitempty"`
	NativeMethods []string `xml:"NATIVEMETHOD"`
}

const collectionName = "OCRFieldOptions"

// BuildExportEnvelope renders the Export/Collection request Tally's
// gateway expects for one master kind.
func BuildExportEnvelope(kind EntityKind, childOf string) ([]byte, error) {
	envelope := exportEnvelope{
		Header: exportHeader{
			Version:      1,
			TallyRequest: "Export",
			Type:         "Collection",
			ID:           collectionName,
		},
		Body: exportBody{
			Desc: exportDesc{
				Vars: staticVariables{ExportFormat: "$$SysName:XML"},
				TDL: tdlBlock{
					Message: tdlMessage{
						Collection: tdlCollection{
							Name:          collectionName,
							IsModify:      "No",
							Type:          string(kind),
							ChildOf:       childOf,
							NativeMethods: []string{"Name", "Parent", "Alias", "IsActive"},
						},
					},
				},
			},
		},
	}

	out, err := xml.Marshal(envelope)
	if err != nil {
		return nil, utils.NewExternalServiceError("tally", err)
	}
	return append([]byte(xml.Header), out...), nil
}

type exportResponse struct {
	XMLName    xml.Name    `xml:"ENVELOPE"`
	Companies  []entityXML `xml:"BODY>DATA>COLLECTION>COMPANY"`
	Ledgers    []entityXML `xml:"BODY>DATA>COLLECTION>LEDGER"`
	StockItems []entityXML `xml:"BODY>DATA>COLLECTION>STOCKITEM"`
}

type entityXML struct {
	Name     string `xml:"NAME,attr"`
	Alias    string `xml:"ALIAS"`
	Parent   string `xml:"PARENT"`
	IsActive string `xml:"ISACTIVE"`
}

// ParseExportResponse extracts the entity list for one kind from a gateway
// reply. Entries with an empty name are dropped. Tally renders booleans as
// "Yes"/"No"; a missing ISACTIVE counts as active.
func ParseExportResponse(body []byte, kind EntityKind) ([]Entity, error) {
	var decoded exportResponse
	if err := xml.Unmarshal(body, &decoded); err != nil {
		return nil, utils.NewExternalServiceError("tally", err)
	}

	var raw []entityXML
	switch kind {
	case KindCompany:
		raw = decoded.Companies
	case KindLedger:
		raw = decoded.Ledgers
	case KindStockItem:
		raw = decoded.StockItems
	}

	entities := make([]Entity, 0, len(raw))
	for _, e := range raw {
		if e.Name == "" {
			continue
		}
		entities = append(entities, Entity{
			Name:     e.Name,
			Alias:    strings.TrimSpace(e.Alias),
			Parent:   e.Parent,
			IsActive: !strings.EqualFold(strings.TrimSpace(e.IsActive), "no"),
		})
	}
	return entities, nil
}
