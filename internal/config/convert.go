package config

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeMismatchError(v, "String")
	}
	return s, nil
}

func asStringOpt(v any, present bool) (string, error) {
	if !present || v == nil {
		return "", nil
	}
	return asString(v)
}

func mandatory(v any, present bool) (any, error) {
	if !present {
		return nil, missingValueError()
	}
	return v, nil
}

func asBoolOpt(v any, present bool) (*bool, error) {
	if !present || v == nil {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, typeMismatchError(v, "Boolean")
	}
	return &b, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, typeMismatchError(v, "Integer")
	}
}

func asIntOpt(v any, present bool) (*int, error) {
	if !present || v == nil {
		return nil, nil
	}
	n, err := asInt(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func asObject(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, typeMismatchError(v, "Object")
	}
	return m, nil
}

func asArray(v any) ([]any, error) {
	a, ok := v.([]any)
	if !ok {
		return nil, typeMismatchError(v, "Array")
	}
	return a, nil
}
