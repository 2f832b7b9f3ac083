package cms

import "encoding/asn1"

// oidProvisioning is the eContentType for up-down provisioning CMS objects
// (spec.md §4.4 step 4, §6).
var oidProvisioning = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 28}

// oidSHA256 is the only digest algorithm this profile accepts (spec.md §4.4
// steps 3 and 11).
var oidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}

// oidRSAEncryption is the only signature/encryption algorithm this profile
// accepts (spec.md §4.4 step 16).
var oidRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
