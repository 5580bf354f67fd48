package native

// HashMap backs a java.util.HashMap. Boxed integers and strings compare
// by value; every other key compares by identity.
type HashMap struct {
	Data map[interface{}]interface{}
}

// NewHashMap creates an empty HashMap.
func NewHashMap() *HashMap {
	return &HashMap{Data: make(map[interface{}]interface{})}
}

func mapKey(key interface{}) interface{} {
	if i, ok := key.(*Integer); ok {
		return i.Value
	}
	return key
}

// Get returns the value for key, or nil.
func (m *HashMap) Get(key interface{}) interface{} {
	return m.Data[mapKey(key)]
}

// Put stores value under key and returns the previous value.
func (m *HashMap) Put(key, value interface{}) interface{} {
	k := mapKey(key)
	old := m.Data[k]
	m.Data[k] = value
	return old
}

func (m *HashMap) ContainsKey(key interface{}) bool {
	_, ok := m.Data[mapKey(key)]
	return ok
}

// Remove deletes key and returns its value.
func (m *HashMap) Remove(key interface{}) interface{} {
	k := mapKey(key)
	old := m.Data[k]
	delete(m.Data, k)
	return old
}

func (m *HashMap) Size() int { return len(m.Data) }
