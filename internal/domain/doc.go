// Package domain models Eurostat urban-audit indicator data.
//
// # Data Source
//
// Indicator cubes come from the Eurostat dissemination API in JSON-stat
// format: one flat value array plus ordered dimension metadata. The array is
// row-major with the LAST declared dimension varying fastest, so cell index
// decoding walks the size list in reverse. See [IndexToCoords].
//
// # Dimension Roles
//
// Dataset versions do not agree on dimension names, so the city, indicator,
// and time dimensions are inferred from naming conventions rather than a
// fixed schema ([HeuristicResolver]). City codes follow the urban-audit
// convention "<ISO2 country><number>C", e.g. "FR001C" for Paris; anything
// else (NUTS regions, country aggregates) is skipped during ingestion.
//
// # Normalization
//
// Indicator values are scaled into [0,1] by unit markers embedded in the
// indicator label ([Normalize]): percentages by 100, travel minutes by 60,
// distances by 50 km, euro amounts by 100, per-1000 rates by 1000, and
// unmarked counts by 100000. Indicators naming costs, travel times, vehicle
// ownership, or fatalities score inverted ([LowerIsBetter]): less is better.
package domain
