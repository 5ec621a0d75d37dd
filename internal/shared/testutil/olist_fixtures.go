package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"deliverypulse/internal/config"
)

// The fixture describes seven orders chosen to hit every derivation branch.
//
//	o1 delivered 5 days early, SP, two geo rows for zip 01037/1037, payment tie
//	o2 delivered 2 days late, RJ
//	o3 shipped, shares o1's zip written without the leading zero, untranslated category
//	o4 delivered without a delivery date, RS, zip absent from geolocation
//	o5 canceled, unparseable purchase timestamp, no items, no payments
//	o6 delivered exactly on the estimate, last second of 2018-06-30
//	o7 delivered early, customer missing from the customers file
var olistFixture = map[string]string{
	config.OrdersFile: `order_id,customer_id,order_status,order_purchase_timestamp,order_approved_at,order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date
o1,c1,delivered,2017-01-05 10:00:00,2017-01-05 11:00:00,2017-01-07 09:00:00,2017-01-10 12:00:00,2017-01-15 00:00:00
o2,c2,delivered,2017-02-10 08:00:00,2017-02-10 09:00:00,2017-02-12 10:00:00,2017-02-20 18:00:00,2017-02-18 00:00:00
o3,c3,shipped,2017-03-01 09:30:00,2017-03-01 10:00:00,2017-03-03 08:00:00,,2017-03-20 00:00:00
o4,c4,delivered,2018-01-20 14:00:00,2018-01-20 15:00:00,,,2018-02-01
o5,c5,canceled,not-a-date,,,,2018-03-10 00:00:00
o6,c6,delivered,2018-06-30 23:59:59,2018-07-01 08:00:00,2018-07-02 10:00:00,2018-07-05 00:00:00,2018-07-05 00:00:00
o7,c7,delivered,2017-05-05 12:00:00,2017-05-05 13:00:00,2017-05-06 10:00:00,2017-05-08 00:00:00,2017-05-10 00:00:00
`,
	config.CustomersFile: "\ufeffcustomer_id, customer_unique_id ,customer_zip_code_prefix,customer_city,customer_state\n" +
		`c1,u1,01037,sao paulo,SP
c2,u2,20000,rio de janeiro,RJ
c3,u3,1037,sao paulo,SP
c4,u4,99999,porto alegre,RS
c5,u5,30000,belo horizonte,MG
c6,u6,20000,rio de janeiro,RJ
`,
	config.OrderItemsFile: `order_id,order_item_id,product_id,seller_id,shipping_limit_date,price,freight_value
o1,1,p1,s1,2017-01-07 00:00:00,90.00,10.50
o1,2,p2,s1,2017-01-07 00:00:00,10.00,5.25
o2,1,p3,s2,2017-02-12 00:00:00,230.50,20.00
o3,1,p4,s3,2017-03-03 00:00:00,73.00,7.00
o4,1,p2,s1,2018-01-22 00:00:00,52.00,3.00
o6,1,p3,s2,2018-07-02 00:00:00,20.00,12.50
o6,2,p5,s2,2018-07-02 00:00:00,15.00,12.50
o7,1,p1,s1,2017-05-06 00:00:00,41.00,4.00
`,
	config.OrderPaymentsFile: `order_id,payment_sequential,payment_type,payment_installments,payment_value
o1,1,voucher,1,20.00
o1,2,credit_card,3,100.00
o2,1,boleto,1,250.50
o3,1,credit_card,2,80.00
o4,1,voucher,1,10.00
o4,2,credit_card,1,30.00
o4,3,voucher,1,15.00
o6,1,debit_card,1,60.00
o7,1,credit_card,1,45.00
`,
	config.ProductsFile: `product_id,product_category_name,product_name_lenght
p1,beleza_saude,40
p2,beleza_saude,35
p3,informatica_acessorios,50
p4,categoria_sem_traducao,20
p5,,10
`,
	config.CategoryTranslationFile: `product_category_name,product_category_name_english
beleza_saude,health_beauty
informatica_acessorios,computers_accessories
`,
	config.GeolocationFile: `geolocation_zip_code_prefix,geolocation_lat,geolocation_lng,geolocation_city,geolocation_state
1037,-23.5,-46.6,sao paulo,SP
01037,-23.7,-46.8,sao paulo,SP
20000,-22.9,-43.2,rio de janeiro,RJ
30000,-19.9,-43.9,belo horizonte,MG
`,
}

// OlistFiles returns the names of the fixture files
func OlistFiles() []string {
	return append([]string(nil), config.RequiredCSVs...)
}

// WriteOlistFixture writes the seven-order fixture dataset into dir
func WriteOlistFixture(t testing.TB, dir string, skip ...string) {
	t.Helper()

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create fixture dir: %v", err)
	}
	for name, content := range olistFixture {
		if skipped[name] {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write fixture %s: %v", name, err)
		}
	}
}

// OlistFixtureContent returns the raw CSV text of one fixture file
func OlistFixtureContent(name string) string {
	return olistFixture[name]
}

func fileExists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
