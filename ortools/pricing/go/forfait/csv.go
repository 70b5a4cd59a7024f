// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package forfait

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"

	"github.com/shopspring/decimal"
)

var csvHeader = []string{"Forfait", "Optimal Price", "Demand", "Profit", "Margin (%)"}

// WriteCSV writes one row per active plan of `forfaits` (name, price, demand, profit and
// margin) followed by the total profit, the network utilization and the execution time.
// Amounts are rounded half away from zero.
func WriteCSV(w io.Writer, res Result, forfaits []Forfait) error {
	if !res.Success {
		return fmt.Errorf("cannot export failed result: %s", res.Status)
	}
	cw := csv.NewWriter(w)
	records := [][]string{csvHeader}
	for _, f := range forfaits {
		if !f.Active() {
			continue
		}
		price, ok := res.OptimalPrices[f.ID]
		if !ok {
			records = append(records, []string{f.DisplayName(), "N/A", "0", "0", "N/A"})
			continue
		}
		margin := "N/A"
		if price != 0 {
			margin = fixed((price-f.Cost)/price*100, 1) + "%"
		}
		records = append(records, []string{
			f.DisplayName(),
			fixed(price, 2),
			fixed(res.Demands[f.ID], 0),
			fixed(res.ProfitByForfait[f.ID], 2),
			margin,
		})
	}
	records = append(records,
		[]string{""},
		[]string{"Total Profit", fixed(res.TotalProfit, 2)},
		[]string{"Network Utilization", fixed(res.NetworkUtilization, 1) + "%"},
		[]string{"Execution Time", fixed(res.ExecutionTime, 0) + " ms"},
	)
	for _, r := range records {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprint(v)
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}
