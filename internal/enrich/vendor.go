/**
 * MAC Address Vendor Lookup.
 *
 * Resolves MAC address OUI prefixes to manufacturer names, used both for
 * device registry enrichment and as a signal in device-type
 * classification (e.g. a Raspberry Pi OUI suggests an IoT/embedded host).
 */

package enrich

import "strings"

// VendorLookup resolves MAC OUI prefixes to vendor names.
type VendorLookup struct {
	oui map[string]string
}

// NewVendorLookup builds a lookup seeded with a common OUI set.
func NewVendorLookup() *VendorLookup {
	v := &VendorLookup{oui: make(map[string]string)}
	v.loadDefaults()
	return v
}

// Lookup resolves mac's vendor, or "" if the OUI isn't known.
func (v *VendorLookup) Lookup(mac string) string {
	clean := strings.ToUpper(strings.NewReplacer(":", "", "-", "").Replace(mac))
	if len(clean) < 6 {
		return ""
	}
	return v.oui[clean[:6]]
}

func (v *VendorLookup) loadDefaults() {
	defaults := map[string]string{
		"000393": "Apple", "0017F2": "Apple", "001C42": "Apple", "001E52": "Apple",
		"001FA3": "Apple", "0021E9": "Apple", "002312": "Apple", "002332": "Apple",
		"00236C": "Apple", "0023DF": "Apple", "002436": "Apple", "002500": "Apple",

		"0002B3": "Intel", "000347": "Intel", "000423": "Intel", "000C1F": "Intel",
		"001302": "Intel", "001320": "Intel", "001372": "Intel", "0013E8": "Intel",

		"00000C": "Cisco", "000142": "Cisco", "000143": "Cisco", "000163": "Cisco",

		"3C5AB4": "Google", "546009": "Google", "D4F547": "Google", "F88FCA": "Google",

		"18FE34": "Espressif", "240AC4": "Espressif", "246F28": "Espressif",
		"24A160": "Espressif", "2C3AE8": "Espressif", "30AEA4": "Espressif",

		"B827EB": "Raspberry Pi", "DCA632": "Raspberry Pi", "E45F01": "Raspberry Pi",

		"00156D": "Ubiquiti", "002722": "Ubiquiti", "0418D6": "Ubiquiti",

		"000569": "VMware", "000C29": "VMware", "001C14": "VMware", "005056": "VMware",

		"FCFBFB": "Samsung", "5C0A5B": "Samsung", "8C7712": "Samsung",
		"B4E1C4": "Amazon", "F0272D": "Amazon", "74C246": "Amazon",
	}
	for k, val := range defaults {
		v.oui[k] = val
	}
}
