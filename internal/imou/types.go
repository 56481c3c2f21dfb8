package imou

// DeviceList is the decoded payload of the deviceBaseList call.
type DeviceList struct {
	Count   int             `json:"count"`
	Devices []DeviceListRow `json:"deviceList"`
}

type DeviceListRow struct {
	DeviceID string `json:"deviceId"`
}

// DeviceDetailList is the decoded payload of the deviceBaseDetailList call.
type DeviceDetailList struct {
	Devices []DeviceDetail `json:"deviceList"`
}

type DeviceDetail struct {
	DeviceID string          `json:"deviceId"`
	Name     string          `json:"name"`
	Model    string          `json:"deviceModel"`
	Ability  string          `json:"ability"`
	Channels []ChannelDetail `json:"channels"`
}

type ChannelDetail struct {
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName"`
}

// Channel returns the sub-record matching the given channel id, or nil.
func (d *DeviceDetail) Channel(channelID string) *ChannelDetail {
	for i := range d.Channels {
		if d.Channels[i].ChannelID == channelID {
			return &d.Channels[i]
		}
	}
	return nil
}

// DeviceOnlineStatus is the decoded payload of the deviceOnline call. Online
// codes are kept as raw strings; mapping to labels is the caller's concern.
type DeviceOnlineStatus struct {
	DeviceID string          `json:"deviceId"`
	OnLine   string          `json:"onLine"`
	Channels []ChannelOnline `json:"channels"`
}

type ChannelOnline struct {
	ChannelID string `json:"channelId"`
	OnLine    string `json:"onLine"`
}

// Channel returns the sub-record matching the given channel id, or nil.
func (d *DeviceOnlineStatus) Channel(channelID string) *ChannelOnline {
	for i := range d.Channels {
		if d.Channels[i].ChannelID == channelID {
			return &d.Channels[i]
		}
	}
	return nil
}

// CollectionList is the decoded payload of the getCollection call.
type CollectionList struct {
	Collections []Collection `json:"collections"`
}

// Collection is a named PTZ preset stored on the device.
type Collection struct {
	Name string `json:"name"`
}
