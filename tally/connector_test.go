package tally

import (
	"strings"
	"testing"
)

func TestBuildExportEnvelope(t *testing.T) {
	envelope, err := BuildExportEnvelope(KindLedger, GroupSundryDebtors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	xml := string(envelope)
	for _, want := range []string{
		"<TALLYREQUEST>Export</TALLYREQUEST>",
		"<TYPE>Collection</TYPE>",
		"<SVEXPORTFORMAT>$$SysName:XML</SVEXPORTFORMAT>",
		`<COLLECTION NAME="OCRFieldOptions" ISMODIFY="No">`,
		"<TYPE>Ledger</TYPE>",
		"<CHILDOF>Sundry Debtors</CHILDOF>",
		"<NATIVEMETHOD>Name</NATIVEMETHOD>",
		"<NATIVEMETHOD>Alias</NATIVEMETHOD>",
		"<NATIVEMETHOD>IsActive</NATIVEMETHOD>",
	} {
		if !strings.Contains(xml, want) {
			t.Errorf("envelope missing %q\n%s", want, xml)
		}
	}
}

func TestBuildExportEnvelope_NoGroupFilter(t *testing.T) {
	envelope, err := BuildExportEnvelope(KindCompany, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(envelope), "<CHILDOF>") {
		t.Error("empty group filter should omit CHILDOF")
	}
}

func TestParseExportResponse_Ledgers(t *testing.T) {
	body := []byte(`<ENVELOPE>
	  <BODY><DATA><COLLECTION>
	    <LEDGER NAME="Ambika Sarees Pvt Ltd"><PARENT>Sundry Debtors</PARENT><ALIAS>Ambika</ALIAS><ISACTIVE>Yes</ISACTIVE></LEDGER>
	    <LEDGER NAME="Kanchipuram Silks Ltd"><PARENT>Sundry Debtors</PARENT></LEDGER>
	    <LEDGER NAME="Old Mill Traders"><PARENT>Sundry Debtors</PARENT><ISACTIVE>No</ISACTIVE></LEDGER>
	    <LEDGER NAME=""><PARENT>Sundry Debtors</PARENT></LEDGER>
	  </COLLECTION></DATA></BODY>
	</ENVELOPE>`)

	entities, err := ParseExportResponse(body, KindLedger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entities) != 3 {
		t.Fatalf("got %d entities, want 3 (nameless entry dropped)", len(entities))
	}
	if entities[0].Name != "Ambika Sarees Pvt Ltd" || entities[0].Parent != "Sundry Debtors" {
		t.Errorf("unexpected first entity: %+v", entities[0])
	}
	if entities[0].Alias != "Ambika" || !entities[0].IsActive {
		t.Errorf("first entity alias/active: %+v", entities[0])
	}
	if !entities[1].IsActive {
		t.Error("missing ISACTIVE should count as active")
	}
	if entities[2].IsActive {
		t.Error("ISACTIVE No should parse as inactive")
	}
}

func TestEntityLabel(t *testing.T) {
	withAlias := Entity{Name: "Ambika Sarees Pvt Ltd", Alias: "Ambika"}
	if got := withAlias.Label(); got != "Ambika" {
		t.Errorf("Label() = %q, want the alias", got)
	}
	plain := Entity{Name: "Kanchipuram Silks Ltd"}
	if got := plain.Label(); got != "Kanchipuram Silks Ltd" {
		t.Errorf("Label() = %q, want the name", got)
	}
}

func TestFieldOptionsFromEntities(t *testing.T) {
	entities := []Entity{
		{Name: "Ambika Sarees Pvt Ltd", Alias: "Ambika", IsActive: true},
		{Name: "Kanchipuram Silks Ltd", IsActive: true},
		{Name: "Old Mill Traders", IsActive: false},
	}

	options := fieldOptionsFromEntities(7, entities)
	if len(options) != 2 {
		t.Fatalf("got %d options, want 2 (inactive ledger skipped)", len(options))
	}
	if options[0].OptionValue != "Ambika Sarees Pvt Ltd" || options[0].OptionLabel != "Ambika" {
		t.Errorf("aliased option: value=%q label=%q", options[0].OptionValue, options[0].OptionLabel)
	}
	if options[1].OptionLabel != "Kanchipuram Silks Ltd" {
		t.Errorf("plain option label = %q, want the name", options[1].OptionLabel)
	}
	for _, o := range options {
		if o.FieldId != 7 {
			t.Errorf("FieldId = %d, want 7", o.FieldId)
		}
	}

	subOptions := subFieldOptionsFromEntities(9, entities)
	if len(subOptions) != 2 || subOptions[0].OptionLabel != "Ambika" || subOptions[0].SubTempFieldId != 9 {
		t.Errorf("unexpected sub field options: %+v", subOptions)
	}
}

func TestParseExportResponse_KindSelectsElement(t *testing.T) {
	body := []byte(`<ENVELOPE><BODY><DATA><COLLECTION>
	  <STOCKITEM NAME="Bolt M8"><PARENT>Fasteners</PARENT></STOCKITEM>
	</COLLECTION></DATA></BODY></ENVELOPE>`)

	stock, err := ParseExportResponse(body, KindStockItem)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stock) != 1 || stock[0].Name != "Bolt M8" {
		t.Errorf("unexpected stock items: %+v", stock)
	}

	ledgers, err := ParseExportResponse(body, KindLedger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ledgers) != 0 {
		t.Errorf("expected no ledgers in a stock item reply, got %+v", ledgers)
	}
}

func TestParseExportResponse_Garbage(t *testing.T) {
	if _, err := ParseExportResponse([]byte("not xml at all <"), KindLedger); err == nil {
		t.Error("expected an error for malformed XML")
	}
}

func TestResolveCollection_AutoInference(t *testing.T) {
	cases := []struct {
		fieldName string
		wantKind  EntityKind
		wantGroup string
	}{
		{"vendor_name", KindLedger, GroupSundryCreditors},
		{"supplier", KindLedger, GroupSundryCreditors},
		{"customer_name", KindLedger, GroupSundryDebtors},
		{"client", KindLedger, GroupSundryDebtors},
		{"item_description", KindStockItem, ""},
		{"product_code", KindStockItem, ""},
		{"company_name", KindCompany, ""},
		{"something_else", KindLedger, ""},
	}
	for _, c := range cases {
		kind, group, err := resolveCollection(LoadRequest{DataType: "auto"}, c.fieldName)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.fieldName, err)
		}
		if kind != c.wantKind || group != c.wantGroup {
			t.Errorf("%s: got (%s, %q), want (%s, %q)", c.fieldName, kind, group, c.wantKind, c.wantGroup)
		}
	}
}

func TestResolveCollection_ExplicitTypes(t *testing.T) {
	kind, group, err := resolveCollection(LoadRequest{DataType: "vendors"}, "whatever")
	if err != nil || kind != KindLedger || group != GroupSundryCreditors {
		t.Errorf("vendors: got (%s, %q, %v)", kind, group, err)
	}

	if _, _, err := resolveCollection(LoadRequest{DataType: "bogus"}, "f"); err == nil {
		t.Error("expected an error for an unknown data_type")
	}
}
