package features

import "github.com/Veraticus/idguard/internal/model"

// CustomerSpec is the column grouping used for customer identifier training.
func CustomerSpec() Spec {
	return Spec{
		Categorical: []string{
			model.ColBusinessUnit,
			model.ColZone,
			model.ColRegion,
			model.ColMinDate,
			model.ColMaxDate,
		},
		Numeric: append([]string{
			model.ColTransactionCount,
			model.ColMoney,
			model.ColDatesCount,
			model.ColVolume,
			model.ColQty,
		}, model.FingerprintColumns...),
	}
}
