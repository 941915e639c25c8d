package graph

import "errors"

var ErrEdgeOrdering = errors.New("co-investment edge requires firm_a_id < firm_b_id")
